package service

import (
	"net/url"
	"sort"
	"time"

	"github.com/studioflow-io/be-orders/internal/errors"
	"github.com/studioflow-io/be-orders/internal/repository"
)

// statusTimestamp maps a status to the stage timestamp stamped on first entry.
// PENDING and CANCELLED stamp nothing. The map is the single source of truth
// for the stage→timestamp relation; stampStatusTimestamp refuses already-set
// fields so each marker is recorded at most once.
var statusTimestamp = map[repository.WorkflowStatus]func(w *repository.Workflow) **time.Time{
	repository.StatusSubmitted:      func(w *repository.Workflow) **time.Time { return &w.SubmittedAt },
	repository.StatusInProgress:     func(w *repository.Workflow) **time.Time { return &w.DesignStartedAt },
	repository.StatusDesignUploaded: func(w *repository.Workflow) **time.Time { return &w.DesignUploadedAt },
	repository.StatusOrderRequested: func(w *repository.Workflow) **time.Time { return &w.OrderRequestedAt },
	repository.StatusOrderApproved:  func(w *repository.Workflow) **time.Time { return &w.OrderApprovedAt },
	repository.StatusCompleted:      func(w *repository.Workflow) **time.Time { return &w.CompletedAt },
	repository.StatusShipped:        func(w *repository.Workflow) **time.Time { return &w.ShippedAt },
}

// stampStatusTimestamp records the stage marker for a newly entered status.
func stampStatusTimestamp(w *repository.Workflow, status repository.WorkflowStatus, now time.Time) {
	field, ok := statusTimestamp[status]
	if !ok {
		return
	}
	if slot := field(w); *slot == nil {
		*slot = &now
	}
}

// TransitionFields are the optional, type-checked fields a transition may
// carry. A nil pointer means "not supplied".
type TransitionFields struct {
	DesignURL      *string
	FinalURL       *string
	Courier        *string
	TrackingNumber *string
	RevisionNote   *string
	AdminNote      *string
}

// patchField pairs a validator with a setter, so the allowed partial-update
// surface is an explicit schema rather than runtime field probing.
type patchField struct {
	validate func(name, value string) error
	apply    func(w *repository.Workflow, value string)
}

var patchSchema = map[string]patchField{
	"design_url": {
		validate: validateFieldURL,
		apply:    func(w *repository.Workflow, v string) { w.DesignURL = &v },
	},
	"final_url": {
		validate: validateFieldURL,
		apply:    func(w *repository.Workflow, v string) { w.FinalURL = &v },
	},
	"courier": {
		validate: validateFieldText(100),
		apply:    func(w *repository.Workflow, v string) { w.Courier = &v },
	},
	"tracking_number": {
		validate: validateFieldText(100),
		apply:    func(w *repository.Workflow, v string) { w.TrackingNumber = &v },
	},
	"revision_note": {
		validate: validateFieldText(2000),
		apply: func(w *repository.Workflow, v string) {
			w.RevisionNote = &v
			w.RevisionCount++
		},
	},
	"admin_note": {
		validate: validateFieldText(2000),
		apply:    func(w *repository.Workflow, v string) { w.AdminNote = &v },
	},
}

// supplied returns the provided field values keyed by schema name.
func (f TransitionFields) supplied() map[string]string {
	out := make(map[string]string)
	set := func(name string, v *string) {
		if v != nil {
			out[name] = *v
		}
	}
	set("design_url", f.DesignURL)
	set("final_url", f.FinalURL)
	set("courier", f.Courier)
	set("tracking_number", f.TrackingNumber)
	set("revision_note", f.RevisionNote)
	set("admin_note", f.AdminNote)
	return out
}

// Validate checks every supplied field against the schema. Runs before any
// persistence is attempted.
func (f TransitionFields) Validate() error {
	names := make([]string, 0)
	values := f.supplied()
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := patchSchema[name].validate(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// applyTo writes the supplied fields onto the workflow via the schema setters.
func (f TransitionFields) applyTo(w *repository.Workflow) {
	for name, value := range f.supplied() {
		patchSchema[name].apply(w, value)
	}
}

func validateFieldURL(name, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.InvalidInput(name, "must be an absolute http(s) URL")
	}
	if len(value) > 2048 {
		return errors.InvalidInput(name, "too long")
	}
	return nil
}

func validateFieldText(maxLen int) func(string, string) error {
	return func(name, value string) error {
		if len(value) > maxLen {
			return errors.InvalidInput(name, "too long")
		}
		return nil
	}
}
