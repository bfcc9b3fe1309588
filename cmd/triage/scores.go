package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"leadtriage/internal/domain"
	"leadtriage/internal/engine"
	"leadtriage/internal/repo"
)

// scoreFile is the import format for scorer output:
//
//	leads:
//	  - id: <lead-id>
//	    score: 72
//	    recommended_action: pursue
//	    positive_reasons: [budget confirmed]
//	drafts:
//	  - id: <draft-id>
//	    score: 40
//	    recommended_action: review
type scoreFile struct {
	Leads  []scoreEntry `yaml:"leads"`
	Drafts []scoreEntry `yaml:"drafts"`
}

type scoreEntry struct {
	ID                string   `yaml:"id"`
	Score             int      `yaml:"score"`
	RecommendedAction string   `yaml:"recommended_action"`
	PositiveReasons   []string `yaml:"positive_reasons"`
	NegativeReasons   []string `yaml:"negative_reasons"`
}

func (s scoreEntry) row() (repo.ScoreRow, error) {
	if s.ID == "" {
		return repo.ScoreRow{}, fmt.Errorf("score entry missing id")
	}
	action, err := domain.ParseAction(s.RecommendedAction)
	if err != nil {
		return repo.ScoreRow{}, fmt.Errorf("%s: %w", s.ID, err)
	}
	return repo.ScoreRow{
		Score:             s.Score,
		RecommendedAction: action,
		PositiveReasons:   s.PositiveReasons,
		NegativeReasons:   s.NegativeReasons,
	}, nil
}

func scoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Load scorer output",
		Long:  "Scores and recommendations are produced outside triage. Import writes them to the score tables read by the table scoring source.",
	}
	cmd.AddCommand(scoresImportCmd())
	return cmd
}

func scoresImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yml>",
		Short: "Import lead and draft scores from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var f scoreFile
			if err := yaml.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("invalid score file: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := domain.Stamp(time.Now())
				for _, entry := range f.Leads {
					row, err := entry.row()
					if err != nil {
						return err
					}
					if err := e.Repo.PutLeadScore(ctx, entry.ID, row, now); err != nil {
						return fmt.Errorf("lead %s: %w", entry.ID, err)
					}
				}
				for _, entry := range f.Drafts {
					row, err := entry.row()
					if err != nil {
						return err
					}
					if err := e.Repo.PutDraftScore(ctx, entry.ID, row, now); err != nil {
						return fmt.Errorf("draft %s: %w", entry.ID, err)
					}
				}
				fmt.Printf("imported %d lead score(s), %d draft score(s)\n", len(f.Leads), len(f.Drafts))
				return nil
			})
		},
	}
}
