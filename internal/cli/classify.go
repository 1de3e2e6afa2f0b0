package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shipdecl/internal/classifier"
)

type classifyOutput struct {
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	Categories   []classifier.Category `json:"categories"`
	Confidence   float64               `json:"confidence"`
	Reasoning    string                `json:"reasoning"`
	MatchedRules []string              `json:"matched_rules"`
}

func newClassifyCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify [description...]",
		Short: "Classify goods descriptions into declaration categories",
		Long: `classify maps each description to the product categories used in the
declaration. Descriptions are taken from the arguments, or one per line from
stdin when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			c, err := newClassifier(cfg)
			if err != nil {
				return err
			}

			descriptions := args
			if len(descriptions) == 0 {
				descriptions, err = readLines(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}
			if len(descriptions) == 0 {
				return fmt.Errorf("no descriptions given")
			}
			return writeClassifications(cmd.OutOrStdout(), c, descriptions, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON lines with reasoning")
	return cmd
}

func writeClassifications(w io.Writer, c *classifier.Classifier, descriptions []string, asJSON bool) error {
	enc := json.NewEncoder(w)
	for _, d := range descriptions {
		res := c.Classify(d)
		if !asJSON {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", d, res.String()); err != nil {
				return err
			}
			continue
		}
		rules := res.MatchedRules
		if rules == nil {
			rules = []string{}
		}
		if err := enc.Encode(classifyOutput{
			Description:  d,
			Category:     res.String(),
			Categories:   res.Categories,
			Confidence:   res.Confidence,
			Reasoning:    res.Reasoning,
			MatchedRules: rules,
		}); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
