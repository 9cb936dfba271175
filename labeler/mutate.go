package labeler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// LabelMutator attaches labels to donations through the giving web UI
// endpoint. The documented API refuses this mutation for donations outside a
// batch or not created via an external payment source, so it goes through
// the same form POST the browser would make.
type LabelMutator struct {
	BaseURL string
	http    *resty.Client
}

func NewLabelMutator(baseURL string) *LabelMutator {
	if baseURL == "" {
		baseURL = DefaultGivingBaseURL
	}
	client := newWebClient(baseURL)
	client.GetClient().CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &LabelMutator{BaseURL: baseURL, http: client}
}

// AttachLabel submits the method-override PATCH that adds labelID to the
// donation. Anything other than a 200 is unrecoverable; the response is
// dumped for diagnosis before the error terminates the run.
func (m *LabelMutator) AttachLabel(ctx context.Context, session Session, donationID, labelID string) error {
	form := url.Values{}
	form.Set("_method", "patch")
	form.Set("donation[id]", donationID)
	form.Set("section", "labels")
	form.Set("donation[donations_labels_attributes][][id]", "")
	form.Set("donation[donations_labels_attributes][][label_id]", labelID)
	encoded := form.Encode()

	res, err := m.http.R().
		SetContext(ctx).
		SetHeader("Cookie", session.Cookie).
		SetHeader("X-CSRF-Token", session.CSRFToken).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(encoded).
		Post(fmt.Sprintf("/donations/%s", donationID))
	if err != nil {
		return fmt.Errorf("failed to attach label %s to donation %s %w", labelID, donationID, err)
	}
	if res.StatusCode() != http.StatusOK {
		log.Printf("csrf token: %s", session.CSRFToken)
		log.Printf("form body: %s", encoded)
		log.Printf("response (%d): %s", res.StatusCode(), res.Body())
		log.Printf("redirect location: %s", res.Header().Get("Location"))
		return fmt.Errorf("failed to attach label %s to donation %s: status %d", labelID, donationID, res.StatusCode())
	}
	return nil
}
