package mgmt

import (
	"fmt"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
)

// Drainage gradient for SWIM: profile depth minus tile depth, in cm.
type Drainage struct {
	ProfileDepth int
	TileDepth    int
}

// DefaultDrainage is a 2 m profile with tile at 1 m.
var DefaultDrainage = Drainage{ProfileDepth: 200, TileDepth: 100}

// yieldScript converts crop yields to market units every day.
const yieldScript = `
corn_buac   = maize.yield * 0.0159 * 1.155  ! corn yield in bu/ac @ 15.5%% moisture
soy_buac   = soybean.yield * 0.0149 * 1.13  !  soybean yield in bu/ac @ 13%% moisture
soy_mktyd  = soybean.yield * 1.13 ! soybean yield in kg/ha @ 13%% moisture
maz_mktyd  = maize.yield * 1.155 ! maize yield in kg/ha @ 15.5%% moisture
soy_ymgha = soybean.yield * 1.13 / 1000 ! soybean yield in Mg/ha @ 13%% moisture
maz_ymgha = maize.yield * 1.155 / 1000 ! maize yield in Mg/ha @ 15.5%% moisture
!bbc_gradient = -1
%sbbc_potential = %d - %d
`

func script(event, text string) *apsimxml.Node {
	return apsimxml.Elem("script",
		apsimxml.Text("text", text),
		apsimxml.Text("event", event),
	)
}

// EmptyManager renders the manager holding the yield unit conversions. The
// SWIM drainage potential is only active when drain is non-nil.
func EmptyManager(drain *Drainage) *apsimxml.Node {
	d, comment := DefaultDrainage, "!"
	if drain != nil {
		d, comment = *drain, ""
	}
	return apsimxml.Elem("manager",
		script("init", ""),
		script("start_of_day", fmt.Sprintf(yieldScript, comment, d.ProfileDepth, d.TileDepth)),
		script("end_of_day", ""),
	).Set("name", "Empty manager")
}

// ManagerFolder renders the manager folder: the empty manager followed by
// the operations schedule.
func ManagerFolder(s *Schedule, drain *Drainage) *apsimxml.Node {
	return apsimxml.Elem("folder",
		EmptyManager(drain),
		s.XML(),
	).Set("name", "Manager folder")
}
