package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plevandm/repairhub-backend/internal/http/handlers/common"
	"github.com/plevandm/repairhub-backend/internal/http/middleware"
	"github.com/plevandm/repairhub-backend/internal/models"
	"github.com/plevandm/repairhub-backend/internal/service"
)

// EscrowHandler обслуживает маршруты escrow платежей.
type EscrowHandler struct {
	escrow *service.EscrowService
}

// NewEscrowHandler создаёт новый хэндлер.
func NewEscrowHandler(escrow *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

// CreateEscrow обрабатывает POST /payments/escrow.
// Escrow создаёт клиент; деньги удерживаются до подтверждения обеими сторонами.
func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	clientID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		OrderID       string  `json:"order_id" binding:"required"`
		MasterID      string  `json:"master_id" binding:"required"`
		Amount        float64 `json:"amount" binding:"required,gt=0"`
		Currency      string  `json:"currency"`
		PaymentMethod string  `json:"payment_method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}
	masterID, err := uuid.Parse(req.MasterID)
	if err != nil {
		common.RespondBadRequest(c, "неверный master_id")
		return
	}

	tx, err := h.escrow.Create(
		c.Request.Context(),
		orderID, clientID, masterID,
		req.Amount,
		models.Currency(req.Currency),
		models.PaymentMethod(req.PaymentMethod),
	)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// ConfirmPayment обрабатывает POST /payments/escrow/:id/confirm-payment.
func (h *EscrowHandler) ConfirmPayment(c *gin.Context) {
	tx, userID, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	if tx.ClientID != userID {
		common.RespondForbidden(c, "подтвердить оплату может только клиент сделки")
		return
	}

	updated, err := h.escrow.ConfirmPaymentByClient(c.Request.Context(), tx.ID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ConfirmWork обрабатывает POST /payments/escrow/:id/confirm-work.
func (h *EscrowHandler) ConfirmWork(c *gin.Context) {
	tx, userID, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	if tx.MasterID != userID {
		common.RespondForbidden(c, "подтвердить работу может только мастер сделки")
		return
	}

	updated, err := h.escrow.ConfirmWorkByMaster(c.Request.Context(), tx.ID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ApproveWork обрабатывает POST /payments/escrow/:id/approve.
// Клиентский override: принять работу и выплатить деньги немедленно.
func (h *EscrowHandler) ApproveWork(c *gin.Context) {
	tx, userID, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	if tx.ClientID != userID {
		common.RespondForbidden(c, "принять работу может только клиент сделки")
		return
	}

	updated, err := h.escrow.ApproveWorkByClient(c.Request.Context(), tx.ID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// OpenDispute обрабатывает POST /payments/escrow/:id/dispute.
func (h *EscrowHandler) OpenDispute(c *gin.Context) {
	tx, userID, ok := h.loadForParticipant(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина спора обязательна")
		return
	}

	initiatedBy := models.PartyClient
	if tx.MasterID == userID {
		initiatedBy = models.PartyMaster
	}

	updated, err := h.escrow.OpenDispute(c.Request.Context(), tx.ID, req.Reason, initiatedBy)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ResolveDispute обрабатывает POST /payments/escrow/:id/resolve.
// Доступно только администратору (арбитру).
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		InFavorOf string `json:"in_favor_of" binding:"required,oneof=client master"`
		Reason    string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "укажите in_favor_of (client|master) и reason")
		return
	}

	var updated *models.EscrowTransaction
	if req.InFavorOf == string(models.PartyClient) {
		updated, err = h.escrow.ResolveDisputeInClientFavor(c.Request.Context(), id, req.Reason)
	} else {
		updated, err = h.escrow.ResolveDisputeInMasterFavor(c.Request.Context(), id, req.Reason)
	}
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// CancelEscrow обрабатывает POST /payments/escrow/:id/cancel.
func (h *EscrowHandler) CancelEscrow(c *gin.Context) {
	tx, userID, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	role, _ := common.CurrentUserRole(c)
	if tx.ClientID != userID && role != middleware.RoleAdmin {
		common.RespondForbidden(c, "отменить escrow может только клиент сделки")
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина отмены обязательна")
		return
	}

	updated, err := h.escrow.Cancel(c.Request.Context(), tx.ID, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// GetPayment обрабатывает GET /payments/escrow/:id.
func (h *EscrowHandler) GetPayment(c *gin.Context) {
	tx, _, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tx)
}

// ListMyPayments обрабатывает GET /payments/escrow?role=client|master.
func (h *EscrowHandler) ListMyPayments(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	role := models.Party(c.DefaultQuery("role", string(models.PartyClient)))

	txs, err := h.escrow.GetUserPayments(c.Request.Context(), userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": txs})
}

// ListOrderPayments обрабатывает GET /payments/orders/:orderId.
func (h *EscrowHandler) ListOrderPayments(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "orderId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	txs, err := h.escrow.GetOrderPayments(c.Request.Context(), orderID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if len(txs) > 0 && role != middleware.RoleAdmin && !participantOfAny(txs, userID) {
		common.RespondForbidden(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": txs})
}

// GetActiveOrderPayment обрабатывает GET /payments/orders/:orderId/active.
// Возвращает авторитетную транзакцию заказа, когда их несколько.
func (h *EscrowHandler) GetActiveOrderPayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "orderId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.escrow.ActiveOrderPayment(c.Request.Context(), orderID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if role != middleware.RoleAdmin && tx.ClientID != userID && tx.MasterID != userID {
		common.RespondForbidden(c, "")
		return
	}

	c.JSON(http.StatusOK, tx)
}

// loadForParticipant загружает транзакцию из :id и проверяет, что текущий
// пользователь — участник сделки или администратор. При ошибке ответ уже
// отправлен, вызывающий код просто выходит.
func (h *EscrowHandler) loadForParticipant(c *gin.Context) (*models.EscrowTransaction, uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return nil, uuid.Nil, false
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return nil, uuid.Nil, false
	}

	tx, err := h.escrow.GetPayment(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return nil, uuid.Nil, false
	}

	role, _ := common.CurrentUserRole(c)
	if tx.ClientID != userID && tx.MasterID != userID && role != middleware.RoleAdmin {
		common.RespondForbidden(c, "вы не участник этой сделки")
		return nil, uuid.Nil, false
	}

	return tx, userID, true
}

func participantOfAny(txs []models.EscrowTransaction, userID uuid.UUID) bool {
	for _, tx := range txs {
		if tx.ClientID == userID || tx.MasterID == userID {
			return true
		}
	}
	return false
}
