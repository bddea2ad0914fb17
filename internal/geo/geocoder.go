package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Coordinate, error)
	Reverse(ctx context.Context, c types.Coordinate) (*Place, error)
}

// Place is the result of a reverse lookup.
type Place struct {
	Address string  `json:"address"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// GeocodeError is returned when the provider answered but could not resolve
// the request. Transport failures are reported as *types.UpstreamError instead.
type GeocodeError struct {
	Status  string
	Message string
}

func (e *GeocodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Failed to geocode address. Google API Status: %s.", e.Status)
	}
	return fmt.Sprintf("Failed to geocode address. Google API Status: %s. Message: %s", e.Status, e.Message)
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location types.Coordinate `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type GoogleGeocoder struct {
	BaseURL string

	apiKey  string
	client  *http.Client
	timeout time.Duration
	retries int
	cache   Cache
	group   singleflight.Group
	logger  *logrus.Logger
}

// NewGoogleGeocoder builds a client for the Google Geocoding API. Each HTTP
// attempt is bounded by timeout and a failed attempt is retried once. cache
// may be nil.
func NewGoogleGeocoder(apiKey string, timeout time.Duration, cache Cache, logger *logrus.Logger) *GoogleGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleGeocoder{
		BaseURL: DefaultGeocodeURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		timeout: timeout,
		retries: 1,
		cache:   cache,
		logger:  logger,
	}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (types.Coordinate, error) {
	if address == "" {
		return types.Coordinate{}, &GeocodeError{Status: "INVALID_REQUEST", Message: "candidate address is empty"}
	}

	if g.cache != nil {
		c, ok, err := g.cache.Get(ctx, address)
		if err != nil {
			g.logger.WithError(err).Warn("geocode cache read failed")
		}
		if ok {
			return c, nil
		}
	}

	v, err := g.shared(ctx, "fwd:"+cacheKey(address), func(ctx context.Context) (any, error) {
		res, err := g.do(ctx, url.Values{"address": {address}})
		if err != nil {
			return nil, err
		}
		return res.Results[0].Geometry.Location, nil
	})
	if err != nil {
		return types.Coordinate{}, err
	}

	c := v.(types.Coordinate)
	if g.cache != nil {
		if err := g.cache.Set(ctx, address, c); err != nil {
			g.logger.WithError(err).Warn("geocode cache write failed")
		}
	}

	return c, nil
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, c types.Coordinate) (*Place, error) {
	latlng := strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)

	v, err := g.shared(ctx, "rev:"+latlng, func(ctx context.Context) (any, error) {
		res, err := g.do(ctx, url.Values{"latlng": {latlng}})
		if err != nil {
			return nil, err
		}

		first := res.Results[0]
		place := &Place{Address: first.FormattedAddress, Lat: c.Lat, Lng: c.Lng}

		var adminLevel2, sublocality string
		for _, comp := range first.AddressComponents {
			for _, t := range comp.Types {
				switch t {
				case "locality":
					place.City = comp.LongName
				case "administrative_area_level_2":
					adminLevel2 = comp.LongName
				case "sublocality", "sublocality_level_1":
					if sublocality == "" {
						sublocality = comp.LongName
					}
				case "administrative_area_level_1":
					place.State = comp.LongName
				case "country":
					place.Country = comp.LongName
				}
			}
		}
		if place.City == "" {
			place.City = adminLevel2
		}
		if place.City == "" {
			place.City = sublocality
		}

		return place, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Place), nil
}

// shared runs fn once for concurrent callers with the same key. The lookup is
// detached from the cancellation of whichever caller started it, while each
// caller stops waiting when its own context ends.
func (g *GoogleGeocoder) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, &types.UpstreamError{Service: "geocoding", Err: ctx.Err()}
	}
}

// do runs a geocoding request, retrying once on transport errors and 5xx
// responses. A response with a non OK status is not retried.
func (g *GoogleGeocoder) do(ctx context.Context, params url.Values) (*geocodeResponse, error) {
	params.Set("key", g.apiKey)
	endpoint := g.BaseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		res, retry, err := g.attempt(ctx, endpoint)
		if err == nil {
			return res, nil
		}
		if !retry {
			return nil, err
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}

		g.logger.WithError(err).WithField("attempt", attempt+1).Warn("geocoding request failed")
	}

	return nil, &types.UpstreamError{Service: "geocoding", Err: lastErr}
}

func (g *GoogleGeocoder) attempt(ctx context.Context, endpoint string) (*geocodeResponse, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("geocoding provider returned %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, true, err
		}
		return nil, false, &types.UpstreamError{Service: "geocoding", Err: fmt.Errorf("decode response: %w", err)}
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		status := body.Status
		if status == "" {
			status = http.StatusText(resp.StatusCode)
		}
		return nil, false, &GeocodeError{Status: status, Message: body.ErrorMessage}
	}

	return &body, false, nil
}
