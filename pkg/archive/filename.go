package archive

import "fmt"

// FXFilename returns the ICON fxshare file name for a file variant, ensemble
// member and hourly step: _FXINP_lfrf<DD><HH>000_<MMM><suffix>, where DD and
// HH are the days and hours of the step.
func FXFilename(suffix string, member, step int) string {
	days := step / 24
	hours := step % 24
	return fmt.Sprintf("_FXINP_lfrf%02d%02d000_%03d%s", days, hours, member, suffix)
}
