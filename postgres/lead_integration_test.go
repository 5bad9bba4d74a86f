//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/pkg/database"
	"github.com/phbpx/leadtrack/postgres"
)

type LeadServiceSuite struct {
	suite.Suite
	ctx   context.Context
	leads *postgres.LeadService
	users *postgres.UserService
	clean func()
}

func TestLeadServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("LEAD_TEST_DB_URL") == "" {
		t.Skip("LEAD_TEST_DB_URL not set")
	}
	suite.Run(t, new(LeadServiceSuite))
}

func (s *LeadServiceSuite) SetupSuite() {
	s.ctx = context.Background()

	db, err := database.Open(database.Config{URL: os.Getenv("LEAD_TEST_DB_URL"), Name: "leads_test"})
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(s.ctx, db))

	s.leads = postgres.NewLeadService(db)
	s.users = postgres.NewUserService(db)
	s.clean = func() {
		_, err := db.ExecContext(s.ctx, `TRUNCATE leads, users RESTART IDENTITY`)
		s.Require().NoError(err)
	}
}

func (s *LeadServiceSuite) SetupTest() {
	s.clean()
}

func (s *LeadServiceSuite) newLead() leadtrack.NewLead {
	owner := "Alice"
	return leadtrack.NewLead{Address: "1 Elm St", City: "Davis", State: "CA", Zip: "95616", Owner: &owner}
}

func (s *LeadServiceSuite) TestCreateDefaults() {
	lead, err := s.leads.Create(s.ctx, s.newLead())
	s.Require().NoError(err)

	s.NotZero(lead.ID)
	s.Equal(leadtrack.StatusLead, lead.Status)
	s.Equal([]string{}, lead.Images)
	s.Equal(int64(1), lead.Version)
}

func (s *LeadServiceSuite) TestPartialUpdate() {
	created, err := s.leads.Create(s.ctx, s.newLead())
	s.Require().NoError(err)

	notes := "corner lot"
	updated, err := s.leads.Update(s.ctx, created.ID, leadtrack.LeadPatch{Notes: &notes})
	s.Require().NoError(err)

	s.Equal(&notes, updated.Notes)
	s.Equal(created.Address, updated.Address)
	s.Equal(created.City, updated.City)
	s.Equal(created.State, updated.State)
	s.Equal(created.Zip, updated.Zip)
	s.Equal(created.Owner, updated.Owner)
	s.Equal(created.Version+1, updated.Version)
}

func (s *LeadServiceSuite) TestStaleVersion() {
	created, err := s.leads.Create(s.ctx, s.newLead())
	s.Require().NoError(err)

	st := "Offer"
	_, err = s.leads.Update(s.ctx, created.ID, leadtrack.LeadPatch{Status: &st, Version: &created.Version})
	s.Require().NoError(err)

	_, err = s.leads.Update(s.ctx, created.ID, leadtrack.LeadPatch{Status: &st, Version: &created.Version})
	s.ErrorIs(err, leadtrack.ErrVersionConflict)
}

// Without a version, concurrent writers are last-write-wins and every
// update lands.
func (s *LeadServiceSuite) TestConcurrentUpdatesLastWriteWins() {
	created, err := s.leads.Create(s.ctx, s.newLead())
	s.Require().NoError(err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := "edit"
			_, err := s.leads.Update(s.ctx, created.ID, leadtrack.LeadPatch{Notes: &n})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.leads.GetByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Version+writers, got.Version)
}

func (s *LeadServiceSuite) TestDeleteTwice() {
	created, err := s.leads.Create(s.ctx, s.newLead())
	s.Require().NoError(err)

	_, err = s.leads.Delete(s.ctx, created.ID)
	s.Require().NoError(err)

	_, err = s.leads.Delete(s.ctx, created.ID)
	s.ErrorIs(err, leadtrack.ErrLeadNotFound)

	leads, err := s.leads.List(s.ctx, leadtrack.ListFilter{})
	s.Require().NoError(err)
	s.Empty(leads)
}

func (s *LeadServiceSuite) TestImageReferenced() {
	nl := s.newLead()
	nl.Images = []string{"/uploads/1-a.png", "/uploads/2-b.png"}
	_, err := s.leads.Create(s.ctx, nl)
	s.Require().NoError(err)

	found, err := s.leads.ImageReferenced(s.ctx, "/uploads/2-b.png")
	s.Require().NoError(err)
	s.True(found)

	found, err = s.leads.ImageReferenced(s.ctx, "/uploads/2-b")
	s.Require().NoError(err)
	s.False(found, "whole elements only")
}

func (s *LeadServiceSuite) TestListScopesAndPages() {
	alice, bob := "alice", "bob"
	for i := 0; i < 3; i++ {
		nl := s.newLead()
		nl.UserID = &alice
		_, err := s.leads.Create(s.ctx, nl)
		s.Require().NoError(err)
	}
	nl := s.newLead()
	nl.UserID = &bob
	_, err := s.leads.Create(s.ctx, nl)
	s.Require().NoError(err)

	scoped, err := s.leads.List(s.ctx, leadtrack.ListFilter{UserID: &alice})
	s.Require().NoError(err)
	s.Len(scoped, 3)

	page, err := s.leads.List(s.ctx, leadtrack.ListFilter{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(int64(2), page[0].ID)
}

func (s *LeadServiceSuite) TestCountByStatus() {
	for _, st := range []string{"Sale", "Sale", "Offer", "Lead"} {
		nl := s.newLead()
		nl.Status = st
		_, err := s.leads.Create(s.ctx, nl)
		s.Require().NoError(err)
	}

	counts, err := s.leads.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[leadtrack.StatusSale])
	s.Equal(1, counts[leadtrack.StatusOffer])
	s.Equal(1, counts[leadtrack.StatusLead])
}

func (s *LeadServiceSuite) TestUserUpsert() {
	u, err := s.users.Upsert(s.ctx, leadtrack.User{ID: "g-1", Name: "Alice", Email: "a@example.com"})
	s.Require().NoError(err)
	s.False(u.CreatedAt.IsZero())

	u2, err := s.users.Upsert(s.ctx, leadtrack.User{ID: "g-1", Name: "Alice B", Email: "a@example.com"})
	s.Require().NoError(err)
	s.Equal("Alice B", u2.Name)
	s.Equal(u.CreatedAt, u2.CreatedAt)

	_, err = s.users.GetByID(s.ctx, "missing")
	s.ErrorIs(err, leadtrack.ErrUserNotFound)
}
