package entry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KOPFJE/patientor/internal/domain/diagnosis"
)

var (
	ErrDraftNotFound = errors.New("entry form not found")
	ErrDraftBusy     = errors.New("entry form is being submitted")
)

// Draft is an entry form opened for one patient.
type Draft struct {
	ID        uuid.UUID
	PatientID string
	CreatedAt time.Time

	form       *Form
	submitting bool
}

// DraftView is the serialisable state of a draft.
type DraftView struct {
	ID        uuid.UUID `json:"id"`
	PatientID string    `json:"patientId"`
	CreatedAt time.Time `json:"createdAt"`
	State     State     `json:"state"`
}

func (d *Draft) view() DraftView {
	return DraftView{ID: d.ID, PatientID: d.PatientID, CreatedAt: d.CreatedAt, State: d.form.State()}
}

// Drafts holds the open entry forms of the HTTP front end. Cancelling or
// submitting a draft never touches the patient store.
type Drafts struct {
	reg   *Registry
	mu    sync.Mutex
	items map[uuid.UUID]*Draft
}

func NewDrafts(reg *Registry) *Drafts {
	if reg == nil {
		reg = defaultRegistry
	}
	return &Drafts{reg: reg, items: make(map[uuid.UUID]*Draft)}
}

// Open starts a new form for patientID offering the given diagnoses.
func (d *Drafts) Open(patientID string, diagnoses diagnosis.Set) DraftView {
	dr := &Draft{
		ID:        uuid.New(),
		PatientID: patientID,
		CreatedAt: time.Now().UTC(),
		form:      NewForm(d.reg, diagnoses),
	}
	d.mu.Lock()
	d.items[dr.ID] = dr
	d.mu.Unlock()
	return dr.view()
}

// Get returns the current state of a draft.
func (d *Drafts) Get(id uuid.UUID) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.items[id]
	if !ok {
		return DraftView{}, ErrDraftNotFound
	}
	return dr.view(), nil
}

// Update applies fn to the draft's form and returns the new state. The
// state is returned even when fn fails so callers can redisplay it.
func (d *Drafts) Update(id uuid.UUID, fn func(f *Form) error) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.items[id]
	if !ok {
		return DraftView{}, ErrDraftNotFound
	}
	if dr.submitting {
		return dr.view(), ErrDraftBusy
	}
	err := fn(dr.form)
	return dr.view(), err
}

// Cancel discards the draft and everything typed into it.
func (d *Drafts) Cancel(id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.items[id]
	if !ok {
		return ErrDraftNotFound
	}
	if dr.submitting {
		return ErrDraftBusy
	}
	dr.form.Cancel()
	delete(d.items, id)
	return nil
}

// Begin runs the form's local submit. On success the draft is marked as in
// flight until Finish is called; concurrent edits, cancels and submits are
// refused meanwhile.
func (d *Drafts) Begin(id uuid.UUID) (string, Entry, DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.items[id]
	if !ok {
		return "", nil, DraftView{}, ErrDraftNotFound
	}
	if dr.submitting {
		return "", nil, dr.view(), ErrDraftBusy
	}
	payload, err := dr.form.Submit()
	if err != nil {
		return "", nil, dr.view(), err
	}
	dr.submitting = true
	return dr.PatientID, payload, dr.view(), nil
}

// Finish ends an in-flight submit. A successful submit closes the draft; a
// failed one leaves it open with its values for another try.
func (d *Drafts) Finish(id uuid.UUID, succeeded bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.items[id]
	if !ok {
		return
	}
	if succeeded {
		delete(d.items, id)
		return
	}
	dr.submitting = false
}

// Len returns the number of open drafts.
func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
