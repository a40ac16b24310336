package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAssignmentRoutes 注册分配登记路由
func (r *Router) RegisterAssignmentRoutes(h *AssignmentHandler) {
	// /care/api/v1/nurses/{id}/patients[...]
	r.Handle("/care/api/v1/nurses/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/care/api/v1/nurses/")
		parts := strings.Split(rest, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] != "patients" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		nurseID := parts[0]

		switch {
		case len(parts) == 2 && req.Method == http.MethodGet:
			h.ListPatients(w, req, nurseID)
		case len(parts) == 2 && req.Method == http.MethodPost:
			h.Assign(w, req, nurseID)
		case len(parts) == 3 && parts[2] == "bulk" && req.Method == http.MethodPost:
			h.BulkAssign(w, req, nurseID)
		case len(parts) == 3 && parts[2] != "" && req.Method == http.MethodDelete:
			h.Unassign(w, req, nurseID, parts[2])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// /care/api/v1/patients/{id}/nurse
	r.Handle("/care/api/v1/patients/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/care/api/v1/patients/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "nurse" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetNurseOf(w, req, parts[0])
	})
}

// RegisterFallRoutes 注册跌倒事件路由
func (r *Router) RegisterFallRoutes(h *FallHandler) {
	r.Handle("/care/api/v1/falls/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/care/api/v1/falls/")
		parts := strings.Split(rest, "/")

		// 固定子路径
		if len(parts) == 1 {
			switch parts[0] {
			case "active":
				if req.Method != http.MethodGet {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Active(w, req)
				return
			case "events":
				if req.Method != http.MethodGet {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Events(w, req)
				return
			case "export":
				if req.Method != http.MethodGet {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				h.Export(w, req)
				return
			}
			w.WriteHeader(http.StatusNotFound)
			return
		}

		// /falls/{patientID}/report | /falls/{patientID}/reset
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "report":
			h.Report(w, req, parts[0])
		case "reset":
			h.Reset(w, req, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// RegisterFormRoutes 注册工单路由
func (r *Router) RegisterFormRoutes(h *FormHandler) {
	r.Handle("/care/api/v1/forms", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/care/api/v1/forms/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/care/api/v1/forms/")
		parts := strings.Split(rest, "/")

		if len(parts) == 1 && parts[0] == "stats" {
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Stats(w, req)
			return
		}

		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		formID := parts[0]
		switch parts[1] {
		case "messages":
			h.AppendMessage(w, req, formID)
		case "resolve":
			h.Resolve(w, req, formID)
		case "cancel":
			h.Cancel(w, req, formID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
