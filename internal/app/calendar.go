package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleCalendarConfig holds the OAuth2 client used to publish approved
// availability to a shared Google Calendar.
type GoogleCalendarConfig struct {
	Config     *oauth2.Config
	CalendarID string
	TokenFile  string
}

// NewGoogleCalendarConfig returns nil when the client is not configured.
func NewGoogleCalendarConfig(clientID, clientSecret, redirectURL, calendarID, tokenFile string) *GoogleCalendarConfig {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarConfig{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		CalendarID: calendarID,
		TokenFile:  tokenFile,
	}
}

func (g *GoogleCalendarConfig) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(g.TokenFile)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return &tok, nil
}

func (g *GoogleCalendarConfig) saveToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(g.TokenFile, data, 0600)
}

// Service builds a Calendar client from the stored token.
func (g *GoogleCalendarConfig) Service(ctx context.Context) (*calendar.Service, error) {
	tok, err := g.loadToken()
	if err != nil {
		return nil, fmt.Errorf("google calendar not authorized: %w", err)
	}
	return calendar.NewService(ctx, option.WithHTTPClient(g.Config.Client(ctx, tok)))
}

// CalendarPublisher keeps an all-day event for every approved record.
type CalendarPublisher struct {
	CalendarID string
	NewService func(ctx context.Context) (*calendar.Service, error)
	Log        *zap.Logger
}

func (g *GoogleCalendarConfig) Publisher(logger *zap.Logger) *CalendarPublisher {
	return &CalendarPublisher{CalendarID: g.CalendarID, NewService: g.Service, Log: logger}
}

func (p *CalendarPublisher) Publish(ctx context.Context, records []AvailabilityRecord) error {
	srv, err := p.NewService(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range records {
		ev := availabilityEvent(r)
		_, err := srv.Events.Insert(p.CalendarID, ev).Context(ctx).Do()
		if googleStatus(err) == http.StatusConflict {
			// The id exists, possibly as a cancelled event from an earlier
			// withdrawal; overwrite it so it is confirmed again.
			_, err = srv.Events.Update(p.CalendarID, ev.Id, ev).Context(ctx).Do()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Key(), err))
			continue
		}
		p.debug("published availability event", r)
	}
	return errors.Join(errs...)
}

// Unpublish deletes the records' events. Events already gone are skipped.
func (p *CalendarPublisher) Unpublish(ctx context.Context, records []AvailabilityRecord) error {
	srv, err := p.NewService(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range records {
		err := srv.Events.Delete(p.CalendarID, eventID(r)).Context(ctx).Do()
		switch googleStatus(err) {
		case http.StatusNotFound, http.StatusGone:
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Key(), err))
			continue
		}
		p.debug("removed availability event", r)
	}
	return errors.Join(errs...)
}

func (p *CalendarPublisher) debug(msg string, r AvailabilityRecord) {
	if p.Log != nil {
		p.Log.Debug(msg, zap.Stringer("record", r.Key()))
	}
}

func googleStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func availabilityEvent(r AvailabilityRecord) *calendar.Event {
	return &calendar.Event{
		Id:           eventID(r),
		Summary:      fmt.Sprintf("%s: %s", r.Owner, r.Kind),
		Description:  fmt.Sprintf("Approved %s for team %s", r.Kind, r.Team),
		Start:        &calendar.EventDateTime{Date: string(r.Date)},
		End:          &calendar.EventDateTime{Date: string(r.Date.AddDays(1))},
		Status:       "confirmed",
		Transparency: "transparent",
	}
}

// eventID is stable per owner, day and status so republishing never
// duplicates an event.
// Google accepts lowercase hex as event ids.
func eventID(r AvailabilityRecord) string {
	sum := sha1.Sum([]byte(r.Owner + "\x00" + string(r.Date) + "\x00" + string(r.Kind)))
	return hex.EncodeToString(sum[:])
}

// GoogleAuthHandler returns the consent URL a manager opens to authorize
// calendar publishing.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	state, err := a.Tokens.IssueState(currentIdentity(c).Username)
	if err != nil {
		a.logger().Error("failed to sign oauth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	url := a.Calendar.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GoogleOAuth2CallbackHandler exchanges the authorization code and stores
// the token used by the publisher. Only a state signed by GoogleAuthHandler
// is accepted.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar not configured"})
		return
	}
	manager, err := a.Tokens.ParseState(c.Query("state"))
	if err != nil {
		a.logger().Warn("rejected oauth callback", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	token, err := a.Calendar.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if err := a.Calendar.saveToken(token); err != nil {
		a.logger().Error("failed to store calendar token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}
	a.logger().Info("google calendar authorized", zap.String("manager", manager))
	c.JSON(http.StatusOK, gin.H{"message": "Authorization successful"})
}
