package labeler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

const (
	DefaultAPIBaseURL = "https://api.planningcenteronline.com"

	DonationsPageSize       = "100"
	LabelsPageSize          = "100"
	CampusesPageSize        = "100"
	ReceivedAfterDateFormat = "2006-01-02T00:00:00Z"
)

type APIError map[string]interface{}

// Source wraps a JSON:API payload for path based access. Lookups return the
// value together with a bool reporting whether the path exists and is non-null,
// since most relationship paths are nominally absent.
type Source struct {
	data gjson.Result
}

func ParseSource(json string) Source {
	return Source{data: gjson.Parse(json)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) StringsForPath(path string) []string {
	var values []string
	for _, r := range s.data.Get(path).Array() {
		values = append(values, r.String())
	}
	return values
}

func (s Source) SourcesForPath(path string) []Source {
	var sources []Source
	for _, r := range s.data.Get(path).Array() {
		sources = append(sources, Source{data: r})
	}
	return sources
}

// Donation is a single donation resource from the Giving API. Label and
// person relationships are dug out of the raw payload since both are
// nominally absent.
type Donation struct {
	Source Source
}

func (d Donation) ID() string {
	id, _ := d.Source.StringForPath("id")
	return id
}

func (d Donation) PaymentStatus() string {
	status, _ := d.Source.StringForPath("attributes.payment_status")
	return status
}

func (d Donation) PersonID() (string, bool) {
	return d.Source.StringForPath("relationships.person.data.id")
}

func (d Donation) LabelIDs() []string {
	return d.Source.StringsForPath("relationships.labels.data.#.id")
}

// Person is a single person resource from the People API.
type Person struct {
	Source Source
}

func (p Person) Name() string {
	first, _ := p.Source.StringForPath("data.attributes.first_name")
	last, _ := p.Source.StringForPath("data.attributes.last_name")
	return first + " " + last
}

func (p Person) PrimaryCampusID() (string, bool) {
	return p.Source.StringForPath("data.relationships.primary_campus.data.id")
}

type Label struct {
	ID         string `json:"id"`
	Attributes struct {
		Slug string `json:"slug"`
	} `json:"attributes"`
}

type Campus struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type labelCollection struct {
	Labels []Label `json:"data"`
}

type campusCollection struct {
	Campuses []Campus `json:"data"`
}

// APIClient issues authenticated requests against the documented REST API
// using the personal access token as basic auth.
type APIClient struct {
	BaseURL string
	Token   PersonalAccessToken
	http    *http.Client
}

func NewAPIClient(baseURL string, token PersonalAccessToken) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		http:    &http.Client{Timeout: HTTPRequestTimeout},
	}
}

func (c *APIClient) builder() *requests.Builder {
	return requests.URL(c.BaseURL).
		Client(c.http).
		BasicAuth(c.Token.AppID, c.Token.Secret)
}

// EachDonation pages through donations received after the given date,
// invoking fn for each one. Pagination follows the server supplied
// meta.next.offset cursor until it is absent. An error from fn stops the
// enumeration and is returned as-is.
func (c *APIClient) EachDonation(ctx context.Context, receivedAfter string, fn func(Donation) error) error {
	offset := int64(0)
	for {
		apiError := APIError{}
		var json string
		err := c.builder().
			Pathf("/giving/v2/donations").
			Param("offset", fmt.Sprintf("%d", offset)).
			Param("per_page", DonationsPageSize).
			Param("where[received_at][gt]", receivedAfter).
			ToString(&json).
			ErrorJSON(&apiError).
			Fetch(ctx)
		if err != nil {
			log.Printf("Giving API Error: %+v", apiError)
			return fmt.Errorf("failed to list donations %w", err)
		}
		if !gjson.Valid(json) {
			log.Printf("Invalid Giving API Response:\n%s", json)
			return errors.New("invalid json response")
		}
		payload := gjson.Parse(json)
		for _, d := range payload.Get("data").Array() {
			if err := fn(Donation{Source: Source{data: d}}); err != nil {
				return err
			}
		}
		next := payload.Get("meta.next.offset")
		if !next.Exists() {
			return nil
		}
		offset = next.Int()
	}
}

// FindPerson fetches a single person by id.
func (c *APIClient) FindPerson(ctx context.Context, personID string) (Person, error) {
	apiError := APIError{}
	var json string
	err := c.builder().
		Pathf("/people/v2/people/%s", personID).
		ToString(&json).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("People API Error: %+v", apiError)
		return Person{}, fmt.Errorf("failed to fetch person %s %w", personID, err)
	}
	return Person{Source: ParseSource(json)}, nil
}

// GivingLabels fetches the labels defined in Giving. A single page is
// assumed sufficient; labels beyond the page size go unseen.
func (c *APIClient) GivingLabels(ctx context.Context) ([]Label, error) {
	apiError := APIError{}
	var collection labelCollection
	err := c.builder().
		Pathf("/giving/v2/labels").
		Param("per_page", LabelsPageSize).
		ToJSON(&collection).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("Giving API Error: %+v", apiError)
		return nil, fmt.Errorf("failed to list labels %w", err)
	}
	return collection.Labels, nil
}

// PeopleCampuses fetches the campuses defined in People. Single page
// assumption as for labels.
func (c *APIClient) PeopleCampuses(ctx context.Context) ([]Campus, error) {
	apiError := APIError{}
	var collection campusCollection
	err := c.builder().
		Pathf("/people/v2/campuses").
		Param("per_page", CampusesPageSize).
		ToJSON(&collection).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("People API Error: %+v", apiError)
		return nil, fmt.Errorf("failed to list campuses %w", err)
	}
	return collection.Campuses, nil
}
