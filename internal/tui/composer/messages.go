package composer

import (
	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/linking"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/wizard"
)

// servicesLoadedMsg carries phase one of a catalog load.
type servicesLoadedMsg struct {
	gen     int
	catalog *catalog.Catalog
	err     error
}

// detailsLoadedMsg carries the catalog with events. Details never fail as a
// whole; failing services are listed as gaps.
type detailsLoadedMsg struct {
	gen     int
	catalog *catalog.Catalog
}

// linkResultMsg is the outcome of a link attempt for the step in ticket.
type linkResultMsg struct {
	ticket wizard.Ticket
	result linking.Result
	err    error
}

type submitDoneMsg struct {
	result submit.Result
	err    error
}

// Notes shown on the Account panel after a link attempt.
const (
	noteUnsupported = "This service cannot be linked from here. Link it on the website, then press ctrl+r."
	noteFailed      = "Could not start linking. Press enter to try again."
	noteRedirected  = "Finish signing in in your browser, then press ctrl+r to refresh."
)
