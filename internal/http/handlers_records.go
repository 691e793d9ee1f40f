package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizdash/internal/core"
	"bizdash/internal/dashboard"
	"bizdash/internal/log"
)

// validationErrors are the failures caused by user input rather than the
// remote side.
var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrEmptyCategory,
	core.ErrEmptyCustomer,
	core.ErrEmptyName,
	core.ErrEmptyEmployee,
	core.ErrEndBeforeStart,
	core.ErrMissingID,
}

func isValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	var fe *fieldError
	return errors.As(err, &fe)
}

// create decodes and writes one record for the page slug.
func (s *Server) create(r *http.Request, slug string, p *RequestBodyParser) error {
	ctx, cancel := remoteContext(r)
	defer cancel()

	switch slug {
	case dashboard.SlugExpenses:
		e, err := DecodeExpense(p)
		if err != nil {
			return err
		}
		_, err = s.deps.Records.AddExpense(ctx, e)
		return err
	case dashboard.SlugIncome:
		in, err := DecodeIncome(p)
		if err != nil {
			return err
		}
		_, err = s.deps.Records.AddIncome(ctx, in)
		return err
	case dashboard.SlugProjects:
		pr, err := DecodeProject(p)
		if err != nil {
			return err
		}
		_, err = s.deps.Records.AddProject(ctx, pr)
		return err
	case dashboard.SlugPayroll:
		pay, err := DecodePayroll(p)
		if err != nil {
			return err
		}
		_, err = s.deps.Records.AddPayroll(ctx, pay)
		return err
	}
	return errReadOnly
}

var errReadOnly = errors.New("records of this page cannot be created here")

// writeResult maps a create or edit outcome onto the htmx response.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, op string, err error, success string) {
	slug := pageFrom(r).Meta().Slug
	logger := log.FromContext(r.Context())
	switch {
	case errors.Is(err, errReadOnly):
		ErrorResponse(http.StatusMethodNotAllowed, "This page is read-only.").Write(w)
	case err != nil && isValidation(err):
		logger.InfoContext(r.Context(), "Rejected record", log.FieldOperation, op,
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
		UnprocessableEntityError(validationMessage(err)).Write(w)
	case err != nil:
		logger.ErrorContext(r.Context(), "Record write failed", log.FieldOperation, op,
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeRemote)
		BadGatewayError("The table service rejected the change. Try again later.").Write(w)
	default:
		NewHTMXResponse().
			TriggerRecordsChanged(slug).
			TriggerFormReset().
			TriggerSuccessNotification(success).
			Write(w)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	meta := pageFrom(r).Meta()
	err := s.create(r, meta.Slug, p)
	s.writeResult(w, r, log.OpAdd, err, "Record added to "+meta.Title)
}

// findProject looks up a project by id in the current dataset.
func (s *Server) findProject(r *http.Request, id string) (core.Project, bool, error) {
	ctx, cancel := remoteContext(r)
	defer cancel()
	ds, err := s.deps.Projects.Get(ctx)
	if err != nil {
		return core.Project{}, false, err
	}
	for _, p := range ds.Records {
		if p.ID == id {
			return p, true, nil
		}
	}
	return core.Project{}, false, nil
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	meta := pageFrom(r).Meta()
	if meta.Slug != dashboard.SlugProjects {
		NotFoundError("Only projects can be edited").Write(w)
		return
	}
	p, ok, err := s.findProject(r, chi.URLParam(r, "id"))
	switch {
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Project lookup failed", log.FieldError, err)
		BadGatewayError("Could not load the project.").Write(w)
		return
	case !ok:
		NotFoundError("Project not found").Write(w)
		return
	}
	s.views.partial(w, r, http.StatusOK, "form", pageView{Model: &dashboard.Model{Meta: meta}, Edit: &p})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	meta := pageFrom(r).Meta()
	if meta.Slug != dashboard.SlugProjects {
		NotFoundError("Only projects can be edited").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	pr, err := DecodeProject(p)
	if err == nil {
		pr.ID = chi.URLParam(r, "id")
		ctx, cancel := remoteContext(r)
		_, err = s.deps.Records.EditProject(ctx, pr)
		cancel()
	}
	s.writeResult(w, r, log.OpEdit, err, "Project updated")
}
