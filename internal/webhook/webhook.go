package webhook

import (
	"encoding/xml"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hoops-sms/internal/handler"
)

// apology is the only text a sender ever sees when something breaks
// internally; raw error details stay in the logs.
const apology = "Sorry, something went wrong handling your message. Please try again in a bit."

// twiml is the gateway's XML reply envelope.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// Server receives inbound SMS webhooks from the gateway and answers with
// TwiML.
type Server struct {
	sms  *handler.SMSHandler
	path string
	log  zerolog.Logger

	// Per-sender token buckets; an SMS conversation has no business
	// exceeding a handful of messages per minute.
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewServer(sms *handler.SMSHandler, path string, log zerolog.Logger) *Server {
	return &Server{
		sms:   sms,
		path:  path,
		log:   log.With().Str("component", "webhook").Logger(),
		rate:  rate.Limit(0.2), // 12 messages/minute sustained
		burst: 5,
	}
}

// Routes returns the HTTP handler serving the webhook endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.path, s.handleInbound)
	return mux
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}

	if !s.limiterFor(from).Allow() {
		s.log.Warn().Str("from", from).Msg("Sender rate limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	reply, err := s.sms.HandleMessage(r.Context(), from, body)
	if err != nil {
		s.log.Error().Err(err).Str("from", from).Msg("Failed to handle inbound message")
		reply = apology
	}

	s.writeTwiML(w, reply)
}

func (s *Server) writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return
	}
	if err := xml.NewEncoder(w).Encode(twiml{Message: message}); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	if limiter, ok := s.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(s.rate, s.burst)
	actual, _ := s.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}
