// Package memory provides in-process implementations of the lead and user
// services. They back the handler tests and the database-less demo mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phbpx/leadtrack"
)

// LeadService keeps leads in a map. Ids come from a counter and are never
// reused, even after a delete.
type LeadService struct {
	mu     sync.RWMutex
	nextID int64
	leads  map[int64]leadtrack.Lead
	now    func() time.Time
}

func NewLeadService() *LeadService {
	return &LeadService{
		leads: make(map[int64]leadtrack.Lead),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (ls *LeadService) Create(_ context.Context, nl leadtrack.NewLead) (leadtrack.Lead, error) {
	status, err := leadtrack.ParseStatus(nl.Status)
	if err != nil {
		return leadtrack.Lead{}, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.nextID++
	now := ls.now()
	lead := leadtrack.Lead{
		ID:        ls.nextID,
		Name:      nl.Name,
		Address:   nl.Address,
		City:      nl.City,
		State:     nl.State,
		Zip:       nl.Zip,
		Owner:     nl.Owner,
		Images:    append([]string{}, nl.Images...),
		Status:    status,
		Notes:     nl.Notes,
		UserID:    nl.UserID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ls.leads[lead.ID] = lead
	return clone(lead), nil
}

func (ls *LeadService) List(_ context.Context, filter leadtrack.ListFilter) ([]leadtrack.Lead, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	leads := make([]leadtrack.Lead, 0, len(ls.leads))
	for _, l := range ls.leads {
		if filter.UserID != nil && (l.UserID == nil || *l.UserID != *filter.UserID) {
			continue
		}
		leads = append(leads, clone(l))
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].ID < leads[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(leads) {
			return []leadtrack.Lead{}, nil
		}
		leads = leads[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(leads) {
		leads = leads[:filter.Limit]
	}
	return leads, nil
}

func (ls *LeadService) GetByID(_ context.Context, id int64) (leadtrack.Lead, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	l, ok := ls.leads[id]
	if !ok {
		return leadtrack.Lead{}, leadtrack.ErrLeadNotFound
	}
	return clone(l), nil
}

func (ls *LeadService) Update(_ context.Context, id int64, patch leadtrack.LeadPatch) (leadtrack.Lead, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	current, ok := ls.leads[id]
	if !ok {
		return leadtrack.Lead{}, leadtrack.ErrLeadNotFound
	}
	if patch.Version != nil && *patch.Version != current.Version {
		return leadtrack.Lead{}, leadtrack.ErrVersionConflict
	}

	lead := clone(current)
	if err := patch.Apply(&lead); err != nil {
		return leadtrack.Lead{}, err
	}
	lead.Version++
	lead.UpdatedAt = ls.now()
	ls.leads[id] = lead
	return clone(lead), nil
}

func (ls *LeadService) Delete(_ context.Context, id int64) (leadtrack.Lead, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	l, ok := ls.leads[id]
	if !ok {
		return leadtrack.Lead{}, leadtrack.ErrLeadNotFound
	}
	delete(ls.leads, id)
	return l, nil
}

func (ls *LeadService) CountByStatus(_ context.Context) (map[leadtrack.Status]int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	counts := make(map[leadtrack.Status]int)
	for _, l := range ls.leads {
		counts[l.Status]++
	}
	return counts, nil
}

func (ls *LeadService) ImageReferenced(_ context.Context, url string) (bool, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	for _, l := range ls.leads {
		for _, img := range l.Images {
			if img == url {
				return true, nil
			}
		}
	}
	return false, nil
}

func clone(l leadtrack.Lead) leadtrack.Lead {
	l.Images = append([]string{}, l.Images...)
	return l
}

type UserService struct {
	mu    sync.RWMutex
	users map[string]leadtrack.User
}

func NewUserService() *UserService {
	return &UserService{users: make(map[string]leadtrack.User)}
}

func (us *UserService) Upsert(_ context.Context, u leadtrack.User) (leadtrack.User, error) {
	us.mu.Lock()
	defer us.mu.Unlock()

	if existing, ok := us.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = time.Now().UTC()
	}
	us.users[u.ID] = u
	return u, nil
}

func (us *UserService) GetByID(_ context.Context, id string) (leadtrack.User, error) {
	us.mu.RLock()
	defer us.mu.RUnlock()

	u, ok := us.users[id]
	if !ok {
		return leadtrack.User{}, leadtrack.ErrUserNotFound
	}
	return u, nil
}
