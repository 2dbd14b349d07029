package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quizflow/internal/app"
	"quizflow/internal/model"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var answer string
	cmd := &cobra.Command{
		Use:   "catalog [quiz-id]",
		Short: "Print a catalog's effective question sequence",
		Long:  "Without a quiz id, lists the available quizzes. With --answer, resolves the branch the first question leads to.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			reg, err := app.LoadCatalogs(cfg.Catalog.Dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if opts.format == "text" {
					for _, id := range reg.IDs() {
						fmt.Fprintln(out, id)
					}
					return nil
				}
				return writeJSON(cmd, reg.IDs())
			}

			c, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			seq := c.InitialSequence()
			initial := c.InitialQuestion()
			if answer != "" {
				next, expanded := c.Expand(seq, initial.ID, answer)
				if !expanded {
					return fmt.Errorf("%q does not lead anywhere from %s, known: %s",
						answer, initial.ID, strings.Join(c.PathKeys(initial.ID), ", "))
				}
				seq = next
			}

			if opts.format == "text" {
				for i, q := range seq {
					fmt.Fprintf(out, "%2d. %-20s %-14s %s\n", i+1, q.ID, q.Type, q.Prompt)
				}
				if answer == "" {
					fmt.Fprintf(out, "branches on %s: %s\n", initial.ID, strings.Join(c.PathKeys(initial.ID), ", "))
				}
				return nil
			}
			return writeJSON(cmd, struct {
				QuizID    string           `json:"quizId"`
				Answer    string           `json:"answer,omitempty"`
				Branches  []string         `json:"branches"`
				Questions []model.Question `json:"questions"`
			}{c.ID(), answer, c.PathKeys(initial.ID), seq})
		},
	}
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "Answer to the first question")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
