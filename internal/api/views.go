package api

import (
	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/gate"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/wizard"
)

type sessionView struct {
	ID              string               `json:"id"`
	Stage           int                  `json:"stage"`
	StageName       string               `json:"stage_name"`
	Stages          []domain.StageInfo   `json:"stages"`
	CanAdvance      bool                 `json:"can_advance"`
	AdvanceBlocked  string               `json:"advance_blocked,omitempty"`
	Artifact        domain.PhotoArtifact `json:"artifact"`
	Sizes           domain.Catalog       `json:"sizes"`
	CatalogDegraded bool                 `json:"catalog_degraded"`
	Backgrounds     []backgroundView     `json:"backgrounds"`
	CopiesOptions   []int                `json:"copies_options"`
	Copies          int                  `json:"copies"`
	LastError       string               `json:"last_error,omitempty"`
	OutputRef       string               `json:"output_ref,omitempty"`
	InFlight        []inFlightView       `json:"in_flight"`
}

type backgroundView struct {
	Preset  domain.BackgroundPreset `json:"preset"`
	Name    string                  `json:"name"`
	Display string                  `json:"display"`
}

type inFlightView struct {
	Action processing.Action `json:"action"`
	Label  string            `json:"label"`
}

func newSessionView(sess *wizard.Session) sessionView {
	state := sess.Snapshot()
	decision := gate.AdmitForward(state.Stage, state.Artifact, gate.ProcessState{LastError: state.LastError})

	backgrounds := make([]backgroundView, 0, len(domain.BackgroundOptions()))
	for _, opt := range domain.BackgroundOptions() {
		backgrounds = append(backgrounds, backgroundView{Preset: opt.Preset, Name: opt.Name, Display: opt.Display})
	}

	busy := sess.Busy()
	inflight := make([]inFlightView, 0, len(busy))
	for _, action := range busy {
		inflight = append(inflight, inFlightView{Action: action, Label: processing.BusyLabel(action)})
	}

	return sessionView{
		ID:              state.ID,
		Stage:           int(state.Stage),
		StageName:       state.Stage.String(),
		Stages:          domain.Stages(),
		CanAdvance:      decision.Admitted,
		AdvanceBlocked:  decision.Reason,
		Artifact:        state.Artifact,
		Sizes:           state.Sizes,
		CatalogDegraded: state.CatalogDegraded,
		Backgrounds:     backgrounds,
		CopiesOptions:   domain.CopiesPerSheet,
		Copies:          state.Copies,
		LastError:       state.LastError,
		OutputRef:       state.OutputRef,
		InFlight:        inflight,
	}
}
