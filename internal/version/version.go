// ABOUTME: Version constants
// ABOUTME: Single source for product identity strings
package version

const (
	// Version is the current release
	Version = "0.1.0"

	// Product is the product name
	Product = "RadioCore"

	// Manufacturer is the company name
	Manufacturer = "OneStopRadio"
)

// UserAgent is the HTTP agent string used by outbound connections.
const UserAgent = Manufacturer + "/" + Version
