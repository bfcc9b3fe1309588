package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"leadtriage/internal/domain"
	"leadtriage/internal/engine"
)

type leadPath struct {
	LeadID string `path:"lead_id"`
}

func registerLeads(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Create lead directly",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body FieldsRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		form, err := parseForm(input.Body.Fields)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := h.engine.CreateLead(ctx, form, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Lead `json:"body"`
	}, error) {
		items, err := h.engine.ListLeads(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Lead `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lead",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}",
		Summary:     "Get lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *leadPath) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		l, err := h.engine.GetLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})
}

func registerDecisions(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-decision",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/decision",
		Summary:     "Resolve the effective decision for a lead",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *leadPath) (*struct {
		Body domain.EffectiveDecision `json:"body"`
	}, error) {
		d, err := h.engine.ResolveDecision(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.EffectiveDecision `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-decisions",
		Method:      http.MethodGet,
		Path:        "/decisions",
		Summary:     "Resolve decisions for every lead",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DecisionListResponse `json:"body"`
	}, error) {
		items, err := h.engine.ListDecisions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DecisionListResponse `json:"body"`
		}{Body: DecisionListResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerOverrides(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "append-override",
		Method:        http.MethodPost,
		Path:          "/leads/{lead_id}/overrides",
		Summary:       "Append an override event",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		LeadID string                `path:"lead_id"`
		Body   CreateOverrideRequest `json:"body"`
	}) (*struct {
		Body domain.OverrideEvent `json:"body"`
	}, error) {
		in := engine.OverrideInput{LeadID: input.LeadID, Action: input.Body.Action, ActorID: actorID(ctx)}
		if input.Body.Reason != nil {
			in.Reason = *input.Body.Reason
		}
		ev, err := h.engine.AppendOverride(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OverrideEvent `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-overrides",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/overrides",
		Summary:     "Override history, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *leadPath) (*struct {
		Body []domain.OverrideEvent `json:"body"`
	}, error) {
		items, err := h.engine.OverrideHistory(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OverrideEvent `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "latest-override",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}/overrides/latest",
		Summary:     "Latest override event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *leadPath) (*struct {
		Body LatestOverrideResponse `json:"body"`
	}, error) {
		ev, err := h.engine.LatestOverride(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LatestOverrideResponse `json:"body"`
		}{Body: LatestOverrideResponse{Override: ev}}, nil
	})
}
