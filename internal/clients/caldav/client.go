package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// Client publishes birthday calendars to a CalDAV collection.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	client       *caldav.Client
}

func NewClient(baseURL, username, password, calendarPath string) *Client {
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarPath: calendarPath,
	}
}

// IsConfigured returns true if the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: c.username, password: c.password},
		Timeout:   30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the configured account.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}
	return result, nil
}

// PublishCalendar uploads the calendar as <name>.ics into the
// configured collection. PUT replaces, so republishing is idempotent.
// When no collection path is configured, the first discovered calendar
// of the account is used.
func (c *Client) PublishCalendar(ctx context.Context, name string, cal *ical.Calendar) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if c.calendarPath == "" {
		cals, err := c.DiscoverCalendars(ctx)
		if err != nil {
			return err
		}
		if len(cals) == 0 {
			return fmt.Errorf("no calendar collection found on the server")
		}
		c.calendarPath = cals[0].Path
	}

	objectPath := c.calendarPath
	if !strings.HasSuffix(objectPath, "/") {
		objectPath += "/"
	}
	objectPath += name + ".ics"

	if _, err := client.PutCalendarObject(ctx, objectPath, cal); err != nil {
		return fmt.Errorf("put calendar object: %w", err)
	}
	return nil
}
