package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/db"
	"github.com/moverq1337/hireboard/internal/extractor"
	"github.com/moverq1337/hireboard/internal/ranking"
	"github.com/moverq1337/hireboard/internal/scoring"
	"github.com/moverq1337/hireboard/internal/service"
	"github.com/moverq1337/hireboard/internal/store"
)

var rerankCmd = &cobra.Command{
	Use:   "rerank <job-id>...",
	Short: "Recompute applicant ranks of the given jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]uuid.UUID, 0, len(args))
		for _, arg := range args {
			id, err := uuid.Parse(arg)
			if err != nil {
				return apperrors.Wrapf(err, "job id %q", arg)
			}
			ids = append(ids, id)
		}

		cfg, log, err := setup()
		if err != nil {
			return err
		}
		conn, err := db.Connect(cfg.DBURL, log)
		if err != nil {
			return err
		}

		st := store.New(conn, ranking.NewEngine(conn, log), log)
		// Reranking never scores or touches files.
		svc := service.New(st, extractor.New(log), scoring.NewAdapter(scoring.Disabled{}, 0, log), nil, log)

		for _, id := range ids {
			if err := svc.Rerank(cmd.Context(), id); err != nil {
				return apperrors.Wrapf(err, "rerank job %s", id)
			}
			log.WithField("job_id", id).Info("job reranked")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rerankCmd)
}
