package geo

import (
	"fmt"
	"net/url"

	"trinetra/pkg/types"
)

const staticMapURL = "https://maps.googleapis.com/maps/api/staticmap"

// StaticMapURL returns a map image showing the registered address (A, blue)
// and the respondent's fix (R, green).
func StaticMapURL(apiKey string, address, respondent types.Coordinate) string {
	params := url.Values{}
	params.Set("size", "600x300")
	params.Set("maptype", "roadmap")
	params.Add("markers", fmt.Sprintf("color:blue|label:A|%f,%f", address.Lat, address.Lng))
	params.Add("markers", fmt.Sprintf("color:green|label:R|%f,%f", respondent.Lat, respondent.Lng))
	params.Set("key", apiKey)

	return staticMapURL + "?" + params.Encode()
}
