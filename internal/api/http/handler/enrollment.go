package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/api/http/middleware"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/gin-gonic/gin"
)

const pngType = "image/png"

type EnrollmentHandler struct {
	registry *enrollment.Registry
	renderer *delivery.Renderer
	qrSize   int
}

func NewEnrollmentHandler(registry *enrollment.Registry, renderer *delivery.Renderer, qrSize int) *EnrollmentHandler {
	if qrSize <= 0 {
		qrSize = delivery.DefaultQRSize
	}
	return &EnrollmentHandler{
		registry: registry,
		renderer: renderer,
		qrSize:   qrSize,
	}
}

// acquire returns the operator's controller for the duration of a request.
func (h *EnrollmentHandler) acquire(ctx *gin.Context) (*enrollment.Controller, func()) {
	return h.registry.Acquire(middleware.OperatorID(ctx))
}

func (h *EnrollmentHandler) OpenSession(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	var req dto.OpenSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := c.Open(ctx.Request.Context(), req.Username)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toSessionResponse(view))
}

func (h *EnrollmentHandler) GetSession(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	view, err := c.View()
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSessionResponse(view))
}

func (h *EnrollmentHandler) CloseSession(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	c.Close()
	ctx.Status(http.StatusNoContent)
}

func (h *EnrollmentHandler) ResetSession(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	view, err := c.Reset()
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSessionResponse(view))
}

func (h *EnrollmentHandler) StartClient(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	view, err := c.StartClientActivation(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSessionResponse(view))
}

func (h *EnrollmentHandler) StartManual(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	view, err := c.StartManualSetup()
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSessionResponse(view))
}

func (h *EnrollmentHandler) Back(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	view, err := c.Back()
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSessionResponse(view))
}

func (h *EnrollmentHandler) SelectLocation(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	var req dto.SelectLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recs, err := c.SelectLocation(ctx.Request.Context(), req.LocationID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.RecommendationsResponse{
		LocationID:      req.LocationID,
		Recommendations: toRecommendations(recs),
	})
}

func (h *EnrollmentHandler) SubmitDevice(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	var req dto.ManualDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := c.SubmitManual(ctx.Request.Context(), enrollment.ManualInput{
		Name:        req.Name,
		LocationID:  req.LocationID,
		KeyMode:     enrollment.KeyMode(req.KeyMode),
		PublicKey:   req.PublicKey,
		Addresses:   req.Addresses,
		Description: req.Description,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	status := http.StatusCreated
	if res.Closed {
		status = http.StatusOK
	}
	ctx.JSON(status, dto.ManualDeviceResponse{
		Closed:    res.Closed,
		Device:    toDeviceInfo(res.Device),
		Configs:   toConfigs(res.Configs),
		KeysLocal: res.Keys.PrivateKey != "",
	})
}

func (h *EnrollmentHandler) Delivery(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	e, err := c.Enrollment()
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.DeliveryResponse{
		Token:     e.Token,
		URL:       e.URL,
		DeepLink:  h.renderer.DeepLink(e),
		QRPayload: h.renderer.QRPayload(e),
		Text:      h.renderer.Text(e),
	})
}

func (h *EnrollmentHandler) DeliveryQR(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	e, err := c.Enrollment()
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.writeQR(ctx, h.renderer.QRPayload(e))
}

// Config serves the WireGuard config for one network, with the generated
// private key filled in when the keys were created here.
func (h *EnrollmentHandler) Config(ctx *gin.Context) {
	c, release := h.acquire(ctx)
	defer release()

	networkID, err := strconv.ParseInt(ctx.Param("network_id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid network id"})
		return
	}

	cfg, privateKey, err := c.Config(networkID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	text := delivery.ConfigText(cfg.Config, privateKey)

	if ctx.Query("format") == "qr" {
		h.writeQR(ctx, text)
		return
	}
	ctx.Header("Content-Disposition", "attachment; filename=\""+delivery.FileName(cfg.NetworkName)+".conf\"")
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (h *EnrollmentHandler) writeQR(ctx *gin.Context, content string) {
	size := h.qrSize
	if raw := ctx.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
			return
		}
		size = n
	}

	png, err := delivery.QRCode(content, size)
	if err != nil {
		slog.Warn("Failed to render QR code", "size", size, "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(http.StatusOK, pngType, png)
}

func toSessionResponse(v enrollment.View) dto.SessionResponse {
	resp := dto.SessionResponse{
		SessionID: v.SessionID.String(),
		Username:  v.Username,
		Step:      string(v.Step),
		Pending:   v.Pending,
		Devices:   v.Devices,
		PublicKey: v.PublicKey,
		KeysLocal: v.KeysLocal,
	}
	if v.Enrollment != nil {
		resp.Enrollment = &dto.EnrollmentInfo{Token: v.Enrollment.Token, URL: v.Enrollment.URL}
	}
	if v.Form != nil {
		resp.Form = &dto.ManualFormInfo{
			LocationID:      v.Form.LocationID,
			Recommendations: toRecommendations(v.Form.Recommendations),
		}
	}
	if v.Device != nil {
		d := toDeviceInfo(*v.Device)
		resp.Device = &d
		resp.Configs = toConfigs(v.Configs)
	}
	return resp
}

func toRecommendations(recs []coreapi.IPRecommendation) []dto.RecommendationInfo {
	out := make([]dto.RecommendationInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, dto.RecommendationInfo{
			NetworkPart:    r.NetworkPart,
			NetworkPrefix:  r.NetworkPrefix,
			ModifiablePart: r.ModifiablePart,
			Address:        r.Address(),
		})
	}
	return out
}

func toDeviceInfo(d coreapi.Device) dto.DeviceInfo {
	return dto.DeviceInfo{
		ID:          d.ID,
		Name:        d.Name,
		PublicKey:   d.WireguardPubkey,
		Description: d.Description,
	}
}

func toConfigs(configs []coreapi.DeviceConfig) []dto.ConfigInfo {
	out := make([]dto.ConfigInfo, 0, len(configs))
	for _, c := range configs {
		out = append(out, dto.ConfigInfo{
			NetworkID:   c.NetworkID,
			NetworkName: c.NetworkName,
			Address:     c.Address,
			Endpoint:    c.Endpoint,
			AllowedIPs:  c.AllowedIPs,
			DNS:         c.DNS,
		})
	}
	return out
}
