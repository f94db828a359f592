package httpapi

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/services/events"
	"github.com/jlynch25/kaizen_api/internal/services/tickets"
)

type createEventRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Seats       int     `json:"seats"`
	Category    string  `json:"category"`
	User        string  `json:"user"`
	ChainID     *uint64 `json:"chainId"`
}

type updateEventRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
	Location    *string  `json:"location"`
	Price       *float64 `json:"price"`
	Seats       *int     `json:"seats"`
	Category    *string  `json:"category"`
	ChainID     *uint64  `json:"chainId"`
}

type recordTicketRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	Address       string `json:"address"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.events.List(r.Context(), q.Get("category"), q.Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) searchEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.events.Search(r.Context(), mux.Vars(r)["query"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// createEvent accepts the web form's multipart body (with an optional image)
// as well as plain JSON.
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var (
		in  events.CreateInput
		err error
	)
	if isMultipart(r) {
		in, err = s.eventFromForm(w, r)
	} else {
		var req createEventRequest
		err = s.decode(w, r, &req, msgInvalidBody)
		in = events.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			Date:        req.Date,
			Location:    req.Location,
			Price:       req.Price,
			Seats:       req.Seats,
			Category:    req.Category,
			UserID:      req.User,
			ChainID:     req.ChainID,
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	event, err := s.events.Create(r.Context(), in)
	if err != nil {
		if in.ImageURL != "" {
			s.removeUpload(in.ImageURL)
		}
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, event)
}

func (s *Server) eventFromForm(w http.ResponseWriter, r *http.Request) (events.CreateInput, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return events.CreateInput{}, err
	}

	in := events.CreateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		Location:    r.FormValue("location"),
		Category:    r.FormValue("category"),
		UserID:      r.FormValue("user"),
	}

	if v := strings.TrimSpace(r.FormValue("price")); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, apperr.Validation(events.MsgPrice)
		}
		in.Price = price
	}
	if v := strings.TrimSpace(r.FormValue("seats")); v != "" {
		seats, err := strconv.Atoi(v)
		if err != nil {
			return in, apperr.Validation(events.MsgSeats)
		}
		in.Seats = seats
	}
	if v := strings.TrimSpace(r.FormValue("chainId")); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return in, apperr.Validation(events.MsgChainID)
		}
		in.ChainID = &id
	}

	url, ok, err := s.saveImage(r)
	if err != nil {
		return in, err
	}
	if ok {
		in.ImageURL = url
	}
	return in, nil
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := s.decode(w, r, &req, msgInvalidBody); err != nil {
		s.writeError(w, r, err)
		return
	}

	event, err := s.events.Update(r.Context(), callerID(r), mux.Vars(r)["id"], events.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
		Price:       req.Price,
		Seats:       req.Seats,
		Category:    req.Category,
		ChainID:     req.ChainID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageBody{Message: "Event deleted"})
}

func (s *Server) uploadEventImage(w http.ResponseWriter, r *http.Request) {
	url, err := s.receiveImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	event, err := s.events.SetImage(r.Context(), callerID(r), mux.Vars(r)["id"], url)
	if err != nil {
		s.removeUpload(url)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) recordTicket(w http.ResponseWriter, r *http.Request) {
	var req recordTicketRequest
	if err := s.decode(w, r, &req, tickets.MsgTxRequired); err != nil {
		s.writeError(w, r, err)
		return
	}

	ticket, err := s.tickets.Record(r.Context(), callerID(r), mux.Vars(r)["id"], tickets.RecordInput{
		TransactionID: req.TransactionID,
		Address:       req.Address,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) myTickets(w http.ResponseWriter, r *http.Request) {
	list, err := s.tickets.ForUser(r.Context(), callerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}
