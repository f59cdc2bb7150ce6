// Package ingest builds the fused live timetable from upstream operator
// feeds. Each refresh cycle constructs fresh per-mode builders whose only
// published output is the new snapshot.
package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/openmobilitytools/journeycast/business/timetable"
	"github.com/openmobilitytools/journeycast/foundation/httpclient"
	"github.com/pkg/errors"
)

// Arrival is one record from the operator's live arrivals feed.
type Arrival struct {
	LineId              string `json:"lineId"`
	VehicleId           string `json:"vehicleId"`
	NaptanId            string `json:"naptanId"`
	Direction           string `json:"direction"`
	DestinationNaptanId string `json:"destinationNaptanId"`
	Towards             string `json:"towards"`
	ExpectedArrival     string `json:"expectedArrival"`
}

// ExpectedArrivalUnix parses the record's expected arrival timestamp, which
// arrives with or without fractional seconds.
func (a *Arrival) ExpectedArrivalUnix() (int64, error) {
	parsed, err := time.Parse(time.RFC3339, a.ExpectedArrival)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing expected arrival %q", a.ExpectedArrival)
	}
	return parsed.Unix(), nil
}

// arrivalsFeed retrieves the full live arrivals snapshot for a mode.
type arrivalsFeed interface {
	Arrivals(mode string) ([]Arrival, error)
}

// arrivalsClient is the live arrivalsFeed over the operator's HTTP API.
type arrivalsClient struct {
	client  *httpclient.Client
	baseUrl string
}

// makeArrivalsClient builds an arrivalsClient authenticating with apiKey.
func makeArrivalsClient(baseUrl, apiKey string, timeout time.Duration) *arrivalsClient {
	return &arrivalsClient{
		client: httpclient.MakeClient(timeout, map[string]string{
			"Authorization": "Bearer " + apiKey,
		}),
		baseUrl: baseUrl,
	}
}

func (c *arrivalsClient) Arrivals(mode string) ([]Arrival, error) {
	var results []Arrival
	requestUrl := fmt.Sprintf("%s/Mode/%s/Arrivals", c.baseUrl, mode)
	_, err := c.client.GetJson(requestUrl, map[string]string{"count": "-1"}, &results)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s arrivals", mode)
	}
	return results, nil
}

// railBoard is a single station's arrival and departure board.
type railBoard struct {
	TrainServices []railService `json:"trainServices"`
}

// railService is one service on a station board. The board for any station a
// service calls at carries the service's whole trajectory through previous
// and subsequent calling points.
type railService struct {
	ServiceID               string              `json:"serviceID"`
	IsCancelled             bool                `json:"isCancelled"`
	Platform                string              `json:"platform"`
	Operator                string              `json:"operator"`
	Sta                     string              `json:"sta"`
	Eta                     string              `json:"eta"`
	Ata                     string              `json:"ata"`
	Destination             []railLocation      `json:"destination"`
	PreviousCallingPoints   []callingPointGroup `json:"previousCallingPoints"`
	SubsequentCallingPoints []callingPointGroup `json:"subsequentCallingPoints"`
}

type railLocation struct {
	Crs string `json:"crs"`
}

type callingPointGroup struct {
	CallingPoint []callingPoint `json:"callingPoint"`
}

// callingPoint is one stop of a rail service with its scheduled, estimated,
// and actual times. Et and At carry non-clock text such as "On time" when the
// service is running to schedule.
type callingPoint struct {
	Crs string `json:"crs"`
	St  string `json:"st"`
	Et  string `json:"et"`
	At  string `json:"at"`
}

// boardsFeed retrieves the arrival and departure board for one station.
type boardsFeed interface {
	Board(stopId string) (*railBoard, int, error)
}

// boardsClient is the live boardsFeed over the rail marketplace API.
type boardsClient struct {
	client            *httpclient.Client
	baseUrl           string
	timeWindowMinutes int
}

// makeBoardsClient builds a boardsClient authenticating with apiKey.
func makeBoardsClient(baseUrl, apiKey string, timeout time.Duration) *boardsClient {
	return &boardsClient{
		client: httpclient.MakeClient(timeout, map[string]string{
			"User-Agent": "",
			"x-apikey":   apiKey,
		}),
		baseUrl:           baseUrl,
		timeWindowMinutes: 120,
	}
}

func (c *boardsClient) Board(stopId string) (*railBoard, int, error) {
	board := railBoard{}
	requestUrl := fmt.Sprintf("%s/GetArrDepBoardWithDetails/%s", c.baseUrl, stopId)
	status, err := c.client.GetJson(requestUrl,
		map[string]string{"timeWindow": fmt.Sprintf("%d", c.timeWindowMinutes)}, &board)
	if err != nil {
		return nil, status, errors.Wrapf(err, "loading board for %s", stopId)
	}
	return &board, status, nil
}

// startOfDay returns midnight of at's day in at's location.
func startOfDay(at time.Time) time.Time {
	year, month, day := at.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, at.Location())
}

// clockToUnix translates an "HH:MM" clock string to unix seconds on the day
// containing dayStart.
func clockToUnix(clock string, dayStart time.Time) (int64, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing clock time %q", clock)
	}
	return dayStart.Add(time.Duration(parsed.Hour())*time.Hour +
		time.Duration(parsed.Minute())*time.Minute).Unix(), nil
}

// syntheticVehicleId names a future trip synthesized from a scheduled start.
func syntheticVehicleId(unixStart int64) string {
	return fmt.Sprintf("T%d", unixStart)
}

// sortStopTimes orders stop times by arrival, stable for equal arrivals.
func sortStopTimes(stops []timetable.StopTime) {
	sort.SliceStable(stops, func(i, j int) bool {
		return stops[i].Arrival < stops[j].Arrival
	})
}

// median returns the median of values, averaging the two central values for
// even-length input. Returns 0 for empty input.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
