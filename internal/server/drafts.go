package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"leadtriage/internal/domain"
	"leadtriage/internal/repo"
)

type draftPath struct {
	DraftID string `path:"draft_id"`
}

type draftBody struct {
	Body DraftResponse `json:"body"`
}

// currentDraft reads the stored draft and lays any unsaved edits from the
// live session over it.
func (h handlers) currentDraft(ctx context.Context, id string) (DraftResponse, error) {
	d, err := h.engine.GetDraft(ctx, id)
	if err != nil {
		return DraftResponse{}, err
	}
	return h.withSession(d), nil
}

func (h handlers) withSession(d domain.LeadDraft) DraftResponse {
	if snap, ok := h.sessions.Snapshot(d.ID); ok {
		return overlayResponse(d, snap)
	}
	return draftResponse(d)
}

func registerDrafts(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-draft",
		Method:        http.MethodPost,
		Path:          "/drafts",
		Summary:       "Create draft",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body FieldsRequest `json:"body"`
	}) (*draftBody, error) {
		form, err := parseForm(input.Body.Fields)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := h.engine.CreateDraft(ctx, form, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &draftBody{Body: draftResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-drafts",
		Method:      http.MethodGet,
		Path:        "/drafts",
		Summary:     "List drafts",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"draft,committed,archived"`
	}) (*struct {
		Body []DraftResponse `json:"body"`
	}, error) {
		items, err := h.engine.ListDrafts(ctx, repo.DraftFilters{Status: domain.DraftStatus(input.Status)})
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]DraftResponse, 0, len(items))
		for _, d := range items {
			out = append(out, h.withSession(d))
		}
		return &struct {
			Body []DraftResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-draft",
		Method:      http.MethodGet,
		Path:        "/drafts/{draft_id}",
		Summary:     "Get draft with pending edits",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *draftPath) (*draftBody, error) {
		resp, err := h.currentDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &draftBody{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-draft-fields",
		Method:      http.MethodPatch,
		Path:        "/drafts/{draft_id}/fields",
		Summary:     "Edit draft fields; saved after a quiet period",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		DraftID string        `path:"draft_id"`
		Body    FieldsRequest `json:"body"`
	}) (*draftBody, error) {
		if _, err := h.sessions.SetFields(ctx, input.DraftID, input.Body.Fields); err != nil {
			return nil, handleError(err)
		}
		resp, err := h.currentDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &draftBody{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "flush-draft",
		Method:      http.MethodPost,
		Path:        "/drafts/{draft_id}/flush",
		Summary:     "Save pending edits now",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *draftPath) (*draftBody, error) {
		if err := h.sessions.Flush(ctx, input.DraftID); err != nil {
			return nil, handleError(err)
		}
		resp, err := h.currentDraft(ctx, input.DraftID)
		if err != nil {
			return nil, handleError(err)
		}
		return &draftBody{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "commit-drafts",
		Method:      http.MethodPost,
		Path:        "/drafts/commit",
		Summary:     "Commit drafts to leads atomically",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DraftSelectionRequest `json:"body"`
	}) (*struct {
		Body CommitResponse `json:"body"`
	}, error) {
		if err := h.sessions.FlushAll(ctx, input.Body.IDs); err != nil {
			return nil, handleError(err)
		}
		leads, err := h.engine.CommitDrafts(ctx, input.Body.IDs, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		h.sessions.Forget(input.Body.IDs...)
		h.logger.Info("drafts committed", "count", len(leads), "actor", actorID(ctx))
		return &struct {
			Body CommitResponse `json:"body"`
		}{Body: CommitResponse{Leads: leads}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-drafts",
		Method:      http.MethodPost,
		Path:        "/drafts/delete",
		Summary:     "Delete drafts atomically; requires confirm=true",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DeleteDraftsRequest `json:"body"`
	}) (*struct {
		Body DeleteResponse `json:"body"`
	}, error) {
		if !input.Body.Confirm {
			return nil, handleError(domain.ErrConfirmationRequired)
		}
		if err := h.sessions.FlushAll(ctx, input.Body.IDs); err != nil && !errors.Is(err, domain.ErrNotEditable) {
			return nil, handleError(err)
		}
		if err := h.engine.DeleteDrafts(ctx, input.Body.IDs, true, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		h.sessions.Forget(input.Body.IDs...)
		h.logger.Info("drafts deleted", "count", len(input.Body.IDs), "actor", actorID(ctx))
		return &struct {
			Body DeleteResponse `json:"body"`
		}{Body: DeleteResponse{Deleted: nonNilSlice(input.Body.IDs)}}, nil
	})
}
