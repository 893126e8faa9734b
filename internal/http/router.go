package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Schedules *ScheduleHandler
	History   *HistoryHandler
	Sites     *SiteHandler
	Workers   *WorkerHandler
	// Admin wraps ledger mutations, normally RequireAdminToken.
	Admin      func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.Handler {
		if cfg.Admin == nil {
			return h
		}
		return cfg.Admin(h)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"ok":true}` + "\n"))
	})

	if cfg.Schedules != nil {
		post := func(path string, handle http.HandlerFunc) {
			mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				handle(w, r)
			})
		}
		get := func(path string, handle http.HandlerFunc) {
			mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				handle(w, r)
			})
		}

		post("/schedule/cell", cfg.Schedules.Cell)
		post("/schedule/assign", cfg.Schedules.Assign)
		post("/schedule/cell/set", cfg.Schedules.Set)
		post("/schedule/auto-fill", cfg.Schedules.AutoFill)
		get("/schedule/cell/snapshot", cfg.Schedules.Snapshot)
		get("/schedule/week", cfg.Schedules.Week)
		get("/schedule/month", cfg.Schedules.Month)
		get("/schedule/year", cfg.Schedules.Year)
	}

	if cfg.History != nil {
		mux.HandleFunc("/history/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.History.Open(w, r)
		})
		mux.HandleFunc("/history/sessions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/history/sessions/")
			id, action, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithHistorySessionID(r.Context(), id))

			switch action {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.History.Get(w, r)
				case http.MethodDelete:
					cfg.History.Close(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodDelete)
				}
			case "scope":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				cfg.History.SetScope(w, r)
			case "undo", "redo":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				if action == "undo" {
					cfg.History.Undo(w, r)
				} else {
					cfg.History.Redo(w, r)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Sites != nil {
		create := admin(cfg.Sites.Create)
		update := admin(cfg.Sites.Update)
		setRule := admin(cfg.Sites.SetRepeatRule)

		mux.HandleFunc("/schedule/sites", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sites.Suggestions(w, r)
		})
		mux.HandleFunc("/sites", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Sites.List(w, r)
			case http.MethodPost:
				create.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/sites/usage", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sites.Usage(w, r)
		})
		mux.HandleFunc("/sites/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/sites/")
			id, action, _ := strings.Cut(rest, "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithSiteID(r.Context(), id))

			switch action {
			case "":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				update.ServeHTTP(w, r)
			case "repeat-rule":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				setRule.ServeHTTP(w, r)
			case "preview":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Sites.Preview(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Workers != nil {
		create := admin(cfg.Workers.Create)
		mux.HandleFunc("/workers", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Workers.List(w, r)
			case http.MethodPost:
				create.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
