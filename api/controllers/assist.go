package controllers

import (
	"net/http"

	"github.com/angelmondragon/homedoc-backend/api/responses"
	"github.com/angelmondragon/homedoc-backend/api/validators"
	"github.com/angelmondragon/homedoc-backend/internal/assist"
	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

type assistChatRequest struct {
	Messages    []assist.Message `json:"messages"`
	Temperature *float64         `json:"temperature"`
	MaxTokens   *int             `json:"max_tokens"`
}

// AssistChat relays a symptom checker transcript and answers {content}.
func AssistChat(svc assist.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteFailure(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "assistant unavailable"))
			return
		}

		var payload assistChatRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}

		result, err := svc.Chat(ctx, assist.ChatInput{
			Messages:    payload.Messages,
			Temperature: payload.Temperature,
			MaxTokens:   payload.MaxTokens,
		})
		if err != nil {
			responses.WriteFailure(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}
