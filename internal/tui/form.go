package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/model"
)

type formKind int

const (
	formComplete formKind = iota
	formReject
	formReassign
)

type formField struct {
	Label string
	Value string
}

type formState struct {
	kind   formKind
	source string
	taskID int64
	fields []formField
	index  int
}

type formEditor struct {
	ui *UI
}

const (
	fieldNote = 0

	fieldReassignTo     = 0
	fieldReassignReason = 1
)

func newForm(kind formKind, source string, task model.Task) *formState {
	form := &formState{kind: kind, source: source, taskID: task.ID}
	switch kind {
	case formReassign:
		form.fields = []formField{
			{Label: "To user id"},
			{Label: "Reason"},
		}
	case formReject:
		form.fields = []formField{{Label: "Reason"}}
	default:
		form.fields = []formField{{Label: "Completion note", Value: task.CompletionNote}}
	}
	return form
}

func (f *formState) title() string {
	switch f.kind {
	case formReassign:
		return "Reassign Task"
	case formReject:
		return "Reject Task"
	default:
		return "Complete Task"
	}
}

func (f *formState) value(index int) string {
	if index < 0 || index >= len(f.fields) {
		return ""
	}
	return strings.TrimSpace(f.fields[index].Value)
}

func parseReassign(fields []formField) (api.ReassignInput, error) {
	raw := strings.TrimSpace(fields[fieldReassignTo].Value)
	to, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || to <= 0 {
		return api.ReassignInput{}, fmt.Errorf("invalid user id")
	}
	return api.ReassignInput{
		ToUserID: to,
		Reason:   strings.TrimSpace(fields[fieldReassignReason].Value),
	}, nil
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}
