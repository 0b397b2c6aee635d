package testfixtures

import (
	"github.com/mark3labs/automatr/internal/catalog"
)

// Option lists served by FakeAPI for the remote select fields of Catalog.
const (
	ReposURL    = "/github/repos/"
	ChannelsURL = "/discord/channels/"
)

// Catalog returns a small loaded catalog:
//
//	timer   always linked; triggers every_day{hour}, every_minute{}
//	github  not connected; trigger new_issue{repo: remote select}
//	discord connected; action send_message{channel: remote select, message}
//	gmail   connected; action send_email{to, subject}
func Catalog() *catalog.Catalog {
	noAuth := false
	needsAuth := true
	return catalog.New(
		[]catalog.Service{
			{ID: "timer", Name: "Timer", RequiresAuth: &noAuth, TriggerCount: 2},
			{ID: "github", Name: "GitHub", RequiresAuth: &needsAuth, TriggerCount: 1},
			{ID: "discord", Name: "Discord", Connected: true, ActionCount: 1},
			{ID: "gmail", Name: "Gmail", Connected: true, ActionCount: 1},
		},
		map[string][]catalog.Event{
			"timer": {
				{ID: "every_day", Name: "Every day", Fields: []catalog.ConfigField{
					{Name: "hour", Label: "Hour", Kind: catalog.KindNumber, Required: true},
				}},
				{ID: "every_minute", Name: "Every minute"},
			},
			"github": {
				{ID: "new_issue", Name: "New issue", Fields: []catalog.ConfigField{
					{Name: "repo", Label: "Repository", Kind: catalog.KindSelect, OptionsURL: ReposURL},
				}},
			},
		},
		map[string][]catalog.Event{
			"discord": {
				{ID: "send_message", Name: "Send message", Fields: []catalog.ConfigField{
					{Name: "channel", Label: "Channel", Kind: catalog.KindSelect, OptionsURL: ChannelsURL},
					{Name: "message", Label: "Message", Kind: catalog.KindText},
				}},
			},
			"gmail": {
				{ID: "send_email", Name: "Send email", Fields: []catalog.ConfigField{
					{Name: "to", Label: "To", Kind: catalog.KindText, Required: true},
					{Name: "subject", Label: "Subject", Kind: catalog.KindText},
				}},
			},
		},
	)
}

// Services returns the first-phase view of Catalog: services only.
func Services() *catalog.Catalog {
	return &catalog.Catalog{Services: Catalog().Services}
}
