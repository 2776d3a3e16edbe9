package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/bobbot/internal/service"
)

// Responder answers one chat utterance for a user.
type Responder interface {
	Handle(ctx context.Context, userID, utterance string) service.AssistantReply
}

var retrieveReply = QuickReply{
	Action:      "message",
	Label:       "생성된 답변 조회",
	MessageText: service.RetrieveAnswer,
}

func AISkillHandler(assistant Responder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseSkill(c)
		if err != nil {
			return badSkill(c, err)
		}

		reply := assistant.Handle(c.UserContext(), req.UserRequest.User.ID, req.UserRequest.Utterance)
		if reply.Pending {
			return c.JSON(textResponse(reply.Text, retrieveReply))
		}
		return c.JSON(textResponse(reply.Text))
	}
}
