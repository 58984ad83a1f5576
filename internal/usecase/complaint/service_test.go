package complaint

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/civiciq/civiciq/internal/domain"
	complaintrepo "github.com/civiciq/civiciq/internal/repository/complaint"
)

// --- Mocks ---

type mockRepo struct {
	complaint     domain.Complaint
	getErr        error
	listed        []complaintrepo.Listed
	listTotal     int
	listErr       error
	lastFilter    complaintrepo.ListFilter
	voteErr       error
	votes         int
	votesErr      error
	statusUpdates []domain.Status
	statusErr     error
	logs          int
	logErr        error
}

func (m *mockRepo) Get(_ context.Context, _ string) (domain.Complaint, error) {
	return m.complaint, m.getErr
}

func (m *mockRepo) List(_ context.Context, f complaintrepo.ListFilter) ([]complaintrepo.Listed, int, error) {
	m.lastFilter = f
	return m.listed, m.listTotal, m.listErr
}

func (m *mockRepo) InsertVote(_ context.Context, _, _ string) error {
	return m.voteErr
}

func (m *mockRepo) VoteCount(_ context.Context, _ string) (int, error) {
	return m.votes, m.votesErr
}

func (m *mockRepo) UpdateStatus(_ context.Context, _ string, status domain.Status) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockRepo) InsertResolutionLog(_ context.Context, _, _, _ string) error {
	if m.logErr != nil {
		return m.logErr
	}
	m.logs++
	return nil
}

type mockRescorer struct {
	triggers []string
	err      error
}

func (m *mockRescorer) Rescore(_ context.Context, _, trigger string) (float64, error) {
	m.triggers = append(m.triggers, trigger)
	return 0, m.err
}

type mockBroadcaster struct {
	events []string
}

func (m *mockBroadcaster) Publish(_ context.Context, eventType string, _ any) {
	m.events = append(m.events, eventType)
}

func newService(repo *mockRepo) (*Service, *mockRescorer, *mockBroadcaster) {
	rescorer := &mockRescorer{}
	b := &mockBroadcaster{}
	return New(repo, rescorer, b, zap.NewNop()), rescorer, b
}

// --- List tests ---

func TestList_ExcludesDuplicates(t *testing.T) {
	repo := &mockRepo{}
	svc, _, _ := newService(repo)

	_, err := svc.List(context.Background(), complaintrepo.ListFilter{IncludeDuplicates: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastFilter.IncludeDuplicates {
		t.Error("duplicates must be excluded from ranking views")
	}
}

func TestList_PaginationDefaults(t *testing.T) {
	repo := &mockRepo{}
	svc, _, _ := newService(repo)

	page, err := svc.List(context.Background(), complaintrepo.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Page != 1 || page.PageSize != 20 {
		t.Errorf("page/size = %d/%d, want 1/20", page.Page, page.PageSize)
	}

	_, _ = svc.List(context.Background(), complaintrepo.ListFilter{PageSize: 500})
	if repo.lastFilter.PageSize != 100 {
		t.Errorf("PageSize = %d, want clamped to 100", repo.lastFilter.PageSize)
	}
}

// --- Vote tests ---

func TestVote_RecordsAndRescores(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1"}, votes: 4}
	svc, rescorer, b := newService(repo)

	votes, err := svc.Vote(context.Background(), "c-1", "user-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if votes != 4 {
		t.Errorf("votes = %d, want 4", votes)
	}
	if len(rescorer.triggers) != 1 || rescorer.triggers[0] != "vote" {
		t.Errorf("triggers = %v, want [vote]", rescorer.triggers)
	}
	if len(b.events) != 1 || b.events[0] != "complaint.voted" {
		t.Errorf("events = %v", b.events)
	}
}

func TestVote_RepeatIsConflict(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1"}, voteErr: domain.ErrAlreadyVoted}
	svc, rescorer, _ := newService(repo)

	_, err := svc.Vote(context.Background(), "c-1", "user-9")
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("err = %v, want ErrAlreadyVoted", err)
	}
	if len(rescorer.triggers) != 0 {
		t.Error("rescore ran for a rejected vote")
	}
}

func TestVote_MissingComplaint(t *testing.T) {
	repo := &mockRepo{getErr: domain.ErrNotFound}
	svc, _, _ := newService(repo)

	_, err := svc.Vote(context.Background(), "missing", "user-9")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestVote_RescoreFailureIsNonFatal(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1"}, votes: 1}
	svc, rescorer, _ := newService(repo)
	rescorer.err = errors.New("rescore down")

	if _, err := svc.Vote(context.Background(), "c-1", "user-9"); err != nil {
		t.Fatalf("vote must survive a rescore failure: %v", err)
	}
}

// --- Status tests ---

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Status
		next    domain.Status
		wantErr bool
	}{
		{"pending to in_progress", domain.StatusPending, domain.StatusInProgress, false},
		{"pending to resolved", domain.StatusPending, domain.StatusResolved, false},
		{"in_progress back to pending", domain.StatusInProgress, domain.StatusPending, true},
		{"resolved to in_progress", domain.StatusResolved, domain.StatusInProgress, true},
		{"no self transition", domain.StatusPending, domain.StatusPending, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{complaint: domain.Complaint{ID: "c-1", Status: tt.current}}
			svc, _, _ := newService(repo)

			err := svc.UpdateStatus(context.Background(), "c-1", tt.next)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrStatusTransition) {
					t.Errorf("err = %v, want ErrStatusTransition", err)
				}
				if len(repo.statusUpdates) != 0 {
					t.Error("status written despite invalid transition")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != tt.next {
				t.Errorf("statusUpdates = %v", repo.statusUpdates)
			}
		})
	}
}

// --- Resolve tests ---

func TestResolve_LogsAndFreezesScore(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1", Status: domain.StatusInProgress}}
	svc, rescorer, b := newService(repo)

	err := svc.Resolve(context.Background(), "c-1", "admin-1", "fixed by road crew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != domain.StatusResolved {
		t.Errorf("statusUpdates = %v", repo.statusUpdates)
	}
	if repo.logs != 1 {
		t.Errorf("resolution logs = %d, want 1", repo.logs)
	}
	if len(rescorer.triggers) != 1 || rescorer.triggers[0] != "resolve" {
		t.Errorf("triggers = %v, want [resolve]", rescorer.triggers)
	}
	if len(b.events) != 1 || b.events[0] != "complaint.resolved" {
		t.Errorf("events = %v", b.events)
	}
}

func TestResolve_AlreadyResolved(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1", Status: domain.StatusResolved}}
	svc, _, _ := newService(repo)

	err := svc.Resolve(context.Background(), "c-1", "admin-1", "")
	if !errors.Is(err, domain.ErrStatusTransition) {
		t.Errorf("err = %v, want ErrStatusTransition", err)
	}
}

// --- Get tests ---

func TestGet_ReturnsVoteCount(t *testing.T) {
	repo := &mockRepo{complaint: domain.Complaint{ID: "c-1"}, votes: 7}
	svc, _, _ := newService(repo)

	c, votes, err := svc.Get(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "c-1" || votes != 7 {
		t.Errorf("got %q/%d, want c-1/7", c.ID, votes)
	}
}
