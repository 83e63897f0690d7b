package agent

import (
	"bytes"
	"encoding/json"
	"net/url"
)

// Event is the assembled attribution payload. Known fields are typed; any
// caller-supplied keys outside them land in the open Extra map.
type Event struct {
	ProjectKey   string         `json:"project_key"`
	SessionID    string         `json:"session_id"`
	VisitorID    string         `json:"visitor_id"`
	EventType    string         `json:"event_type"`
	PageURL      string         `json:"page_url,omitempty"`
	Referrer     string         `json:"referrer,omitempty"`
	UTMSource    string         `json:"utm_source,omitempty"`
	UTMMedium    string         `json:"utm_medium,omitempty"`
	UTMCampaign  string         `json:"utm_campaign,omitempty"`
	UTMTerm      string         `json:"utm_term,omitempty"`
	UTMContent   string         `json:"utm_content,omitempty"`
	DeviceType   string         `json:"device_type,omitempty"`
	ScreenWidth  int            `json:"screen_width,omitempty"`
	ScreenHeight int            `json:"screen_height,omitempty"`
	Locale       string         `json:"locale,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Track assembles and transmits one attribution event, fire-and-forget.
// Assembly order is identity, page context, UTM parameters from the current
// URL, device classification, then caller data, with later values
// overriding earlier ones. When consent is denied every event type except
// page_view is dropped before transmission.
func (a *Agent) Track(eventType string, data map[string]any) {
	if a.HasConsent() == ConsentDenied && eventType != EventTypePageView {
		a.logger.Debug("Event dropped, consent denied", "eventType", eventType)
		return
	}

	ev := &Event{
		ProjectKey:   a.projectKey,
		SessionID:    a.ResolveSessionID(),
		VisitorID:    a.ResolveVisitorID(),
		EventType:    eventType,
		PageURL:      a.currentURL,
		Referrer:     a.referrer,
		DeviceType:   classifyDevice(a.userAgent),
		ScreenWidth:  a.screenWidth,
		ScreenHeight: a.screenHeight,
		Locale:       a.locale,
	}
	a.applyUTM(ev)
	applyCallerData(ev, data)

	a.post(a.ingestURL, ev)
}

// PageView records a page load: it updates the page context, fires a
// session_start event when the 30-minute marker has lapsed, then emits the
// page_view event itself.
func (a *Agent) PageView(pageURL, referrer string) {
	if u, err := url.Parse(pageURL); err == nil {
		a.setPage(u)
	}
	a.referrer = referrer

	if a.sessionStartDue() {
		a.Track(EventTypeSessionStart, nil)
	}
	a.Track(EventTypePageView, nil)
}

// applyUTM copies UTM parameters parsed from the current page query string.
func (a *Agent) applyUTM(ev *Event) {
	if a.currentQuery == nil {
		return
	}
	ev.UTMSource = a.currentQuery.Get("utm_source")
	ev.UTMMedium = a.currentQuery.Get("utm_medium")
	ev.UTMCampaign = a.currentQuery.Get("utm_campaign")
	ev.UTMTerm = a.currentQuery.Get("utm_term")
	ev.UTMContent = a.currentQuery.Get("utm_content")
}

// applyCallerData merges caller-supplied fields last. Keys matching typed
// event fields override them; everything else goes to the Extra map.
func applyCallerData(ev *Event, data map[string]any) {
	for key, value := range data {
		s, isString := value.(string)
		switch {
		case key == "page_url" && isString:
			ev.PageURL = s
		case key == "referrer" && isString:
			ev.Referrer = s
		case key == "utm_source" && isString:
			ev.UTMSource = s
		case key == "utm_medium" && isString:
			ev.UTMMedium = s
		case key == "utm_campaign" && isString:
			ev.UTMCampaign = s
		case key == "utm_term" && isString:
			ev.UTMTerm = s
		case key == "utm_content" && isString:
			ev.UTMContent = s
		case key == "device_type" && isString:
			ev.DeviceType = s
		default:
			if ev.Extra == nil {
				ev.Extra = make(map[string]any)
			}
			ev.Extra[key] = value
		}
	}
}

// post transmits a payload asynchronously. Every failure mode is swallowed
// and logged; transmission never surfaces an error to the caller and is
// never retried.
func (a *Agent) post(endpoint string, payload any) {
	if endpoint == "" {
		a.logger.Debug("No endpoint configured, event discarded")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("Event payload marshal failed", "error", err.Error())
		return
	}

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		resp, err := a.httpClient.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			a.logger.Warn("Event transmission failed", "error", err.Error())
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			a.logger.Warn("Event rejected by endpoint", "status", resp.StatusCode)
		}
	}()
}

// Flush blocks until all in-flight transmissions complete. Long-running
// hosts call it before shutdown; page-style hosts never need to.
func (a *Agent) Flush() {
	a.inflight.Wait()
}
