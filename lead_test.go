package leadtrack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phbpx/leadtrack"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    leadtrack.Status
		wantErr bool
	}{
		{in: "", want: leadtrack.StatusLead},
		{in: "Lead", want: leadtrack.StatusLead},
		{in: "contact", want: leadtrack.StatusContact},
		{in: " OFFER ", want: leadtrack.StatusOffer},
		{in: "Sale", want: leadtrack.StatusSale},
		{in: "seen", want: leadtrack.StatusLead},
		{in: "contacted", want: leadtrack.StatusContact},
		{in: "In Discussion", want: leadtrack.StatusOffer},
		{in: "bought", want: leadtrack.StatusSale},
		{in: "closed", wantErr: true},
		{in: "Sold!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := leadtrack.ParseStatus(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, leadtrack.ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestLeadPatchApply(t *testing.T) {
	owner := "Alice"
	lead := leadtrack.Lead{
		ID:      7,
		Address: "1 Elm St",
		City:    "Davis",
		State:   "CA",
		Zip:     "95616",
		Owner:   &owner,
		Images:  []string{"/uploads/a.jpg"},
		Status:  leadtrack.StatusLead,
	}

	t.Run("only supplied fields change", func(t *testing.T) {
		l := lead
		notes := "needs a new roof"
		require.NoError(t, leadtrack.LeadPatch{Notes: &notes}.Apply(&l))

		assert.Equal(t, &notes, l.Notes)
		assert.Equal(t, lead.Address, l.Address)
		assert.Equal(t, lead.City, l.City)
		assert.Equal(t, lead.Owner, l.Owner)
		assert.Equal(t, lead.Images, l.Images)
		assert.Equal(t, lead.Status, l.Status)
	})

	t.Run("status is normalised", func(t *testing.T) {
		l := lead
		st := "bought"
		require.NoError(t, leadtrack.LeadPatch{Status: &st}.Apply(&l))
		assert.Equal(t, leadtrack.StatusSale, l.Status)
	})

	t.Run("unknown status leaves lead untouched", func(t *testing.T) {
		l := lead
		st := "archived"
		city := "Sacramento"
		err := leadtrack.LeadPatch{Status: &st, City: &city}.Apply(&l)
		require.ErrorIs(t, err, leadtrack.ErrInvalidStatus)
		assert.Equal(t, "Davis", l.City)
	})

	t.Run("images are copied", func(t *testing.T) {
		l := lead
		imgs := []string{"/uploads/b.jpg", "/uploads/c.jpg"}
		require.NoError(t, leadtrack.LeadPatch{Images: &imgs}.Apply(&l))
		imgs[0] = "mutated"
		assert.Equal(t, []string{"/uploads/b.jpg", "/uploads/c.jpg"}, l.Images)
	})
}

func TestLeadPatchEmpty(t *testing.T) {
	assert.True(t, leadtrack.LeadPatch{}.Empty())

	v := int64(3)
	assert.True(t, leadtrack.LeadPatch{Version: &v}.Empty())

	n := ""
	assert.False(t, leadtrack.LeadPatch{Notes: &n}.Empty())
}

func TestLeadPatchBlankFields(t *testing.T) {
	empty, spaces, city := "", "  ", "Davis"
	p := leadtrack.LeadPatch{Address: &empty, City: &city, Zip: &spaces}
	assert.Equal(t, []string{"address", "zip"}, p.BlankFields())
	assert.Empty(t, leadtrack.LeadPatch{City: &city}.BlankFields())
}

func TestLeadPatchTrim(t *testing.T) {
	addr, city, notes := " 1 Elm St ", "Davis\t", "  keep  "
	p := leadtrack.LeadPatch{Address: &addr, City: &city, Notes: &notes}
	p.Trim()

	assert.Equal(t, "1 Elm St", *p.Address)
	assert.Equal(t, "Davis", *p.City)
	assert.Nil(t, p.State)
	assert.Equal(t, "  keep  ", *p.Notes, "only location fields are trimmed")
}
