// Package journeysvc serves journey planning requests over HTTP.
package journeysvc

import (
	"context"
	"encoding/json"
	"errors"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// searchHandler responds to stop search requests
type searchHandler struct {
	log         *logger.Logger
	coordinator *Coordinator
}

// ServeHTTP implements searchHandler's http.Handler interface
func (s *searchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results, err := s.coordinator.Search(r.FormValue("q"))
	if err != nil {
		s.log.Printf("Error searching stops: %v", err)
		writeJsonError(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	writeJson(s.log, w, results)
}

// routeRequest is the body of a journey planning request
type routeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// routeHandler responds to journey planning requests
type routeHandler struct {
	log         *logger.Logger
	coordinator *Coordinator
}

// ServeHTTP implements routeHandler's http.Handler interface
func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var request routeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJsonError(w, "Missing origin or destination", http.StatusBadRequest)
		return
	}
	if request.Origin == "" || request.Destination == "" {
		writeJsonError(w, "Missing origin or destination", http.StatusBadRequest)
		return
	}

	response, err := h.coordinator.Route(request.Origin, request.Destination, time.Now().Unix())
	if err != nil {
		if errors.Is(err, ErrNoPath) {
			writeJsonError(w, "No route found", http.StatusNotFound)
			return
		}
		h.log.Printf("Error planning route from %s to %s: %v", request.Origin, request.Destination, err)
		writeJsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJson(h.log, w, response)
}

// writeJson marshals payload to the response writer as json
func writeJson(log *logger.Logger, w http.ResponseWriter, payload interface{}) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling response to json: error:%v\n", err)
		writeJsonError(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(jsonData)
	if err != nil {
		log.Printf("Error writing json response: %s", err)
	}
}

// writeJsonError writes a json error body with the given status code
func writeJsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// newRouter wires the api routes
func newRouter(log *logger.Logger, coordinator *Coordinator) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/api/search", &searchHandler{log: log, coordinator: coordinator}).Methods(http.MethodGet)
	r.Handle("/api/route", &routeHandler{log: log, coordinator: coordinator}).Methods(http.MethodPost)
	return r
}

// createServer creates configured http.Server for responding to journey requests
func createServer(log *logger.Logger, coordinator *Coordinator, httpPort int) *http.Server {
	r := newRouter(log, coordinator)
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

// RunWebService starts up the journey web service, and terminates on shutdown
// signal.
func RunWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	coordinator *Coordinator,
	httpPort int,
	shutdownSignal chan bool,
) {
	wg.Add(1)
	defer wg.Done()
	srv := createServer(log, coordinator, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()

	select {
	case <-shutdownSignal:
		log.Printf("ending webservice on shutdown signal")
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			log.Printf("error shutting down webservice, error:%s", err)
		}
	}

}
