package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/phbpx/leadtrack"
)

type LeadStoreSuite struct {
	suite.Suite
	store *LeadService
	ctx   context.Context
}

func (s *LeadStoreSuite) SetupTest() {
	s.store = NewLeadService()
	s.ctx = context.Background()
}

func TestLeadStoreSuite(t *testing.T) {
	suite.Run(t, new(LeadStoreSuite))
}

func (s *LeadStoreSuite) create(status string) leadtrack.Lead {
	l, err := s.store.Create(s.ctx, leadtrack.NewLead{
		Address: "1 Elm St", City: "Davis", State: "CA", Zip: "95616", Status: status,
	})
	s.Require().NoError(err)
	return l
}

func (s *LeadStoreSuite) TestCreate() {
	s.Run("assigns increasing ids and defaults", func() {
		a := s.create("")
		b := s.create("contacted")

		s.Greater(b.ID, a.ID)
		s.Equal(leadtrack.StatusLead, a.Status)
		s.Equal(leadtrack.StatusContact, b.Status)
		s.Equal([]string{}, a.Images)
		s.Equal(int64(1), a.Version)
	})

	s.Run("rejects unknown status", func() {
		_, err := s.store.Create(s.ctx, leadtrack.NewLead{Address: "a", City: "b", State: "c", Zip: "d", Status: "won"})
		s.ErrorIs(err, leadtrack.ErrInvalidStatus)
	})
}

func (s *LeadStoreSuite) TestIDsNeverReused() {
	a := s.create("")
	_, err := s.store.Delete(s.ctx, a.ID)
	s.Require().NoError(err)

	b := s.create("")
	s.NotEqual(a.ID, b.ID)
}

func (s *LeadStoreSuite) TestUpdate() {
	s.Run("bumps version and keeps other fields", func() {
		l := s.create("")
		st := "Sale"
		updated, err := s.store.Update(s.ctx, l.ID, leadtrack.LeadPatch{Status: &st})
		s.Require().NoError(err)

		s.Equal(leadtrack.StatusSale, updated.Status)
		s.Equal(l.Address, updated.Address)
		s.Equal(l.Version+1, updated.Version)
	})

	s.Run("stale version conflicts", func() {
		l := s.create("")
		stale := l.Version - 1
		n := "x"
		_, err := s.store.Update(s.ctx, l.ID, leadtrack.LeadPatch{Notes: &n, Version: &stale})
		s.ErrorIs(err, leadtrack.ErrVersionConflict)
	})

	s.Run("unknown id", func() {
		n := "x"
		_, err := s.store.Update(s.ctx, 9999, leadtrack.LeadPatch{Notes: &n})
		s.ErrorIs(err, leadtrack.ErrLeadNotFound)
	})
}

func (s *LeadStoreSuite) TestReturnedLeadsAreCopies() {
	l := s.create("")
	imgs := []string{"/uploads/a.jpg"}
	_, err := s.store.Update(s.ctx, l.ID, leadtrack.LeadPatch{Images: &imgs})
	s.Require().NoError(err)

	got, err := s.store.GetByID(s.ctx, l.ID)
	s.Require().NoError(err)
	got.Images[0] = "mutated"

	again, err := s.store.GetByID(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal("/uploads/a.jpg", again.Images[0])
}

func (s *LeadStoreSuite) TestListPaging() {
	for i := 0; i < 5; i++ {
		s.create("")
	}

	page, err := s.store.List(s.ctx, leadtrack.ListFilter{Limit: 2, Offset: 3})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(int64(4), page[0].ID)

	past, err := s.store.List(s.ctx, leadtrack.ListFilter{Offset: 10})
	s.Require().NoError(err)
	s.Empty(past)
}

func (s *LeadStoreSuite) TestCountByStatus() {
	s.create("Sale")
	s.create("Sale")
	s.create("Offer")

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[leadtrack.StatusSale])
	s.Equal(1, counts[leadtrack.StatusOffer])
}

func (s *LeadStoreSuite) TestImageReferenced() {
	nl := leadtrack.NewLead{Address: "a", City: "b", State: "c", Zip: "d", Images: []string{"/uploads/1-a.png"}}
	lead, err := s.store.Create(s.ctx, nl)
	s.Require().NoError(err)

	found, err := s.store.ImageReferenced(s.ctx, "/uploads/1-a.png")
	s.Require().NoError(err)
	s.True(found)

	found, err = s.store.ImageReferenced(s.ctx, "/uploads/2-b.png")
	s.Require().NoError(err)
	s.False(found)

	_, err = s.store.Delete(s.ctx, lead.ID)
	s.Require().NoError(err)
	found, err = s.store.ImageReferenced(s.ctx, "/uploads/1-a.png")
	s.Require().NoError(err)
	s.False(found)
}
