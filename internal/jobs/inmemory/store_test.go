package inmemory

import (
	"context"
	"testing"

	"github.com/pepmo/voucher-ops/internal/jobs"
)

func TestStore_SaveAndGetJob(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.SendReportJob{
		JobID:      "job-1",
		ReportDate: "2024-03-15",
		Recipients: []string{"ops@example.com"},
		Status:     jobs.JobStatusPending,
	}

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ReportDate != "2024-03-15" || got.Status != jobs.JobStatusPending {
		t.Errorf("unexpected job: %+v", got)
	}

	// Mutating the returned copy must not affect the stored job.
	got.Status = jobs.JobStatusFailed
	again, _ := store.GetJob(ctx, "job-1")
	if again.Status != jobs.JobStatusPending {
		t.Error("GetJob returned a shared reference instead of a copy")
	}
}

func TestStore_SaveJobRequiresID(t *testing.T) {
	store := NewStore()

	if err := store.SaveJob(context.Background(), &jobs.SendReportJob{}); err == nil {
		t.Error("expected error for missing job ID")
	}
}

func TestStore_GetJobNotFound(t *testing.T) {
	store := NewStore()

	if _, err := store.GetJob(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown job ID")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.SendReportJob{
		{JobID: "job-1", ReportDate: "2024-03-14", Status: jobs.JobStatusCompleted},
		{JobID: "job-2", ReportDate: "2024-03-15", Status: jobs.JobStatusPending},
		{JobID: "job-3", ReportDate: "2024-03-15", Status: jobs.JobStatusFailed},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s): %v", j.JobID, err)
		}
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListJobs() returned %d jobs, want 3", len(all))
	}

	byDate, err := store.ListJobs(ctx, jobs.JobFilter{ReportDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("ListJobs by date: %v", err)
	}
	if len(byDate) != 2 {
		t.Errorf("date filter returned %d jobs, want 2", len(byDate))
	}

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("ListJobs by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].JobID != "job-3" {
		t.Errorf("status filter returned %+v, want job-3", byStatus)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListJobs with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d jobs", len(limited))
	}

	offsetPast, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	if err != nil {
		t.Fatalf("ListJobs with offset: %v", err)
	}
	if len(offsetPast) != 0 {
		t.Errorf("offset past end returned %d jobs, want 0", len(offsetPast))
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.SaveJob(ctx, &jobs.SendReportJob{JobID: "job-1", Status: jobs.JobStatusRunning}); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	if err := store.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "smtp refused"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	got, _ := store.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "smtp refused" {
		t.Errorf("unexpected job after update: %+v", got)
	}

	if err := store.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""); err == nil {
		t.Error("expected error for unknown job ID")
	}
}
