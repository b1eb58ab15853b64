package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notification-relay/internal/channel"
	"notification-relay/internal/models"
)

// NotifyHandler is the trusted ingress: the backend publishes events through
// it, authenticated by a shared secret carried in the request body. Nothing
// here persists anything; a publish is a synchronous fan-out and the response
// only reports how many connections were reached.
type NotifyHandler struct {
	secret   []byte
	channels *channel.Manager
	log      *zap.Logger
}

func NewNotifyHandler(secret string, channels *channel.Manager, log *zap.Logger) *NotifyHandler {
	return &NotifyHandler{secret: []byte(secret), channels: channels, log: log}
}

type messageRequest struct {
	Secret  string          `json:"secret"`
	ConvID  models.ID       `json:"convId"`
	Message json.RawMessage `json:"message"`
}

// Message publishes a conversation message to Conversation(convId).
func (h *NotifyHandler) Message(c *gin.Context) {
	var req messageRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.authorized(c, req.Secret) {
		return
	}
	if req.ConvID == "" {
		missingField(c, "convId")
		return
	}
	if len(req.Message) == 0 {
		missingField(c, "message")
		return
	}
	h.publish(c, models.ConversationChannel(string(req.ConvID)), models.EventNewMessage, req.Message)
}

type notificationRequest struct {
	Secret string          `json:"secret"`
	UserID models.ID       `json:"userId"`
	Data   json.RawMessage `json:"data"`
}

// Notification publishes a personal notification to User(userId).
func (h *NotifyHandler) Notification(c *gin.Context) {
	var req notificationRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.authorized(c, req.Secret) {
		return
	}
	if req.UserID == "" {
		missingField(c, "userId")
		return
	}
	if len(req.Data) == 0 {
		missingField(c, "data")
		return
	}
	h.publish(c, models.UserChannel(string(req.UserID)), models.EventNotification, req.Data)
}

type gradeRequest struct {
	Secret    string          `json:"secret"`
	EleveID   models.ID       `json:"eleveId"`
	GradeData json.RawMessage `json:"gradeData"`
}

// Grade publishes a new grade to the student's personal channel.
func (h *NotifyHandler) Grade(c *gin.Context) {
	var req gradeRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.authorized(c, req.Secret) {
		return
	}
	if req.EleveID == "" {
		missingField(c, "eleveId")
		return
	}
	if len(req.GradeData) == 0 {
		missingField(c, "gradeData")
		return
	}
	h.publish(c, models.UserChannel(string(req.EleveID)), models.EventNewGrade, req.GradeData)
}

type absenceRequest struct {
	Secret      string          `json:"secret"`
	EleveID     models.ID       `json:"eleveId"`
	AbsenceData json.RawMessage `json:"absenceData"`
}

// Absence publishes a new absence to the student's personal channel.
func (h *NotifyHandler) Absence(c *gin.Context) {
	var req absenceRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.authorized(c, req.Secret) {
		return
	}
	if req.EleveID == "" {
		missingField(c, "eleveId")
		return
	}
	if len(req.AbsenceData) == 0 {
		missingField(c, "absenceData")
		return
	}
	h.publish(c, models.UserChannel(string(req.EleveID)), models.EventNewAbsence, req.AbsenceData)
}

type calendarEventRequest struct {
	Secret     string          `json:"secret"`
	TargetType string          `json:"targetType"`
	TargetID   models.ID       `json:"targetId"`
	EventData  json.RawMessage `json:"eventData"`
}

// CalendarEvent publishes an agenda event, to a whole class or to one user
// depending on targetType.
func (h *NotifyHandler) CalendarEvent(c *gin.Context) {
	var req calendarEventRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.authorized(c, req.Secret) {
		return
	}
	if req.TargetType == "" {
		missingField(c, "targetType")
		return
	}
	if req.TargetID == "" {
		missingField(c, "targetId")
		return
	}
	if len(req.EventData) == 0 {
		missingField(c, "eventData")
		return
	}

	ch := models.UserChannel(string(req.TargetID))
	if req.TargetType == "class" {
		ch = models.ClassChannel(string(req.TargetID))
	}
	h.publish(c, ch, models.EventNewEvent, req.EventData)
}

func (h *NotifyHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid JSON body"})
		return false
	}
	return true
}

// authorized compares the provided secret in constant time. The response is
// the same whatever went wrong, so a caller probing the endpoint learns
// nothing about why it was refused.
func (h *NotifyHandler) authorized(c *gin.Context, secret string) bool {
	if subtle.ConstantTimeCompare([]byte(secret), h.secret) != 1 {
		h.log.Warn("ingress call with bad secret",
			zap.String("path", c.FullPath()),
			zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
		return false
	}
	return true
}

func (h *NotifyHandler) publish(c *gin.Context, ch models.ChannelID, eventType string, payload json.RawMessage) {
	recipients := h.channels.Publish(ch, eventType, payload)
	c.JSON(http.StatusOK, gin.H{"success": true, "recipients": recipients})
}

func missingField(c *gin.Context, field string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing field: " + field})
}
