// ABOUTME: Version information for timeview binaries
// ABOUTME: Reported in logs and the User-Agent of time probes
package version

const (
	Version      = "0.3.0"
	Product      = "timeview"
	Manufacturer = "cms-dev"
)

// UserAgent identifies timeview clients to the time server
func UserAgent() string {
	return Product + "/" + Version
}
