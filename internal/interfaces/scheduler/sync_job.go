package scheduler

import (
	"context"
	"fmt"
	"log"

	"moneta/internal/domain/credential"
	"moneta/internal/domain/syncer"
)

// SyncJob pulls one owner's transactions through the sync pipeline.
type SyncJob struct {
	ownerID string
	syncer  *syncer.Service
}

func NewSyncJob(ownerID string, svc *syncer.Service) *SyncJob {
	return &SyncJob{ownerID: ownerID, syncer: svc}
}

// Execute runs a default-window sync for the owner.
func (j *SyncJob) Execute(ctx context.Context) error {
	result, err := j.syncer.Synchronize(ctx, j.ownerID, syncer.Options{})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	log.Printf("Scheduled sync for owner %s: items=%d fetched=%d upserted=%d",
		j.ownerID, result.Items, result.Fetched, result.Upserted)
	return nil
}

func (j *SyncJob) OwnerID() string {
	return j.ownerID
}

func (j *SyncJob) Description() string {
	return fmt.Sprintf("transaction sync for owner %s", j.ownerID)
}

// SyncJobProvider builds one SyncJob per owner holding a linked
// credential. Owners with several linked items still get a single job;
// the sync service walks all of their credentials itself.
func SyncJobProvider(creds credential.Repository, svc *syncer.Service) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		all, err := creds.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list credentials: %w", err)
		}

		seen := make(map[string]bool, len(all))
		jobs := make([]Job, 0, len(all))
		for _, cred := range all {
			if seen[cred.OwnerID] {
				continue
			}
			seen[cred.OwnerID] = true
			jobs = append(jobs, NewSyncJob(cred.OwnerID, svc))
		}
		return jobs, nil
	}
}
