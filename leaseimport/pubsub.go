package leaseimport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/utils"
)

const pushHandlerName = "lease-import"

// publishRun is replaced in tests.
var publishRun = PublishImportRun

func PublishImportRun(ctx context.Context, runId int, tenantId string) error {
	topicName := config.ImportRunTopic()

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("IMPORT_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	payload := ImportRunPayload{
		RunId:         runId,
		TenantId:      tenantId,
		CorrelationId: cid,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler processes one queued run per push. Malformed or already handled
// messages are acknowledged with 204; a tenant already importing or a delivery still
// in progress answers 503 so Pub/Sub redelivers later.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_IMPORT_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var payload ImportRunPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		if payload.RunId == 0 || payload.TenantId == "" {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}
		ctx = utils.SetTenantIdInContext(ctx, payload.TenantId)

		messageId := strings.TrimSpace(envelope.Message.ID)
		if messageId != "" {
			db := config.GetDB().WithContext(ctx)
			skip, err := BeginIdempotency(db, payload.TenantId, pushHandlerName, messageId)
			if errors.Is(err, ErrIdempotencyInProgress) {
				c.Status(http.StatusServiceUnavailable)
				return
			}
			if err != nil {
				config.LogError(config.GetLogger(), "leaseimport", "PubSubPushHandler", "begin idempotency", payload, err)
				c.Status(http.StatusServiceUnavailable)
				return
			}
			if skip {
				c.Status(http.StatusNoContent)
				return
			}
		}

		err = processImportRun(ctx, payload)
		if messageId != "" {
			db := config.GetDB().WithContext(ctx)
			if err != nil {
				_ = MarkIdempotencyFailed(db, payload.TenantId, pushHandlerName, messageId, err)
			} else {
				_ = MarkIdempotencySucceeded(db, payload.TenantId, pushHandlerName, messageId)
			}
		}
		if errors.Is(err, utils.ErrLockNotObtained) {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			config.LogError(config.GetLogger(), "leaseimport", "PubSubPushHandler", "process import run", payload, err)
		}
		c.Status(http.StatusNoContent)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
