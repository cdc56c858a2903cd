package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aman-churiwal/credit-gateway/internal/admission"
	"github.com/aman-churiwal/credit-gateway/internal/credit"
	"github.com/aman-churiwal/credit-gateway/internal/metrics"
	"github.com/aman-churiwal/credit-gateway/internal/notify"
	"github.com/aman-churiwal/credit-gateway/internal/sequence"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxBodyBytes = 64 << 10

	// Shown to the shopper when the lender could not be notified
	deliveryFailedMessage = "Не можем да изпратим заявката към Банката."
)

// Admitter decides whether a submission may be processed
type Admitter interface {
	Evaluate(ctx context.Context, meta admission.Meta, sub *admission.Submission) error
}

type Pricing struct {
	Terms             credit.Terms
	MarkupPercent     decimal.Decimal
	CardMarkupPercent decimal.Decimal
}

// Handles credit request submissions from the storefront
type SubmissionHandler struct {
	admitter  Admitter
	sequences sequence.Store
	pricing   Pricing
	mailer    notify.Sender
	proxies   admission.ProxySet
	debug     bool
	logger    *zap.Logger
}

func NewSubmissionHandler(admitter Admitter, sequences sequence.Store, pricing Pricing, mailer notify.Sender, proxies admission.ProxySet, debug bool, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		admitter:  admitter,
		sequences: sequences,
		pricing:   pricing,
		mailer:    mailer,
		proxies:   proxies,
		debug:     debug,
		logger:    logger,
	}
}

func (h *SubmissionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	// A body that is not a JSON object is evaluated as an empty submission,
	// so the trust checks still run first and the field check reports what
	// is missing. Single malformed values are reported as invalid.
	sub := &admission.Submission{}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err == nil {
		sub, err = admission.DecodeSubmission(body)
	}
	if err != nil {
		h.logger.Debug("Undecodable submission body", zap.Error(err))
	}

	meta := admission.MetaFromRequest(c.Request, c.ClientIP(), h.proxies)
	if err := h.admitter.Evaluate(ctx, meta, sub); err != nil {
		h.reject(c, err)
		return
	}

	order, _ := sub.Order()
	plan := h.quote(sub, order)

	orderNumber, err := h.sequences.NextValue(ctx, sub.MerchantKey())
	if err != nil {
		metrics.SequenceFallbacks.Inc()
		h.logger.Warn("Order number degraded",
			zap.String("merchant", sub.MerchantKey()),
			zap.Int64("order_number", orderNumber),
			zap.Error(err),
		)
	}

	msg := notify.NewMessage(sub, orderNumber, notify.Body(sub, order, plan))

	response := gin.H{
		"ok":           true,
		"order_number": orderNumber,
		"plan":         plan,
	}
	if h.debug {
		response["debug"] = sub
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		response["ok"] = false
		response["error"] = deliveryFailedMessage
		if h.debug {
			response["error"] = "Failed to send email: " + err.Error()
		}
	}

	c.JSON(http.StatusOK, response)
}

// Recomputes the plan server side. The storefront's quote is only compared.
func (h *SubmissionHandler) quote(sub *admission.Submission, order admission.Order) credit.Plan {
	markup := h.pricing.MarkupPercent
	if sub.Card.Value {
		markup = h.pricing.CardMarkupPercent
	}
	if order.Markup != nil {
		markup = *order.Markup
	}

	plan := h.pricing.Terms.Quote(credit.Total(order.Items), order.DownPayment, order.Installments, markup)

	if plan.SolverIterations > 0 {
		metrics.RateSolverIterations.Observe(float64(plan.SolverIterations))
	}
	if !plan.RateConverged {
		h.logger.Warn("Rate solver did not converge",
			zap.String("principal", plan.Principal.String()),
			zap.Int("installments", plan.InstallmentCount),
			zap.String("monthly_payment", plan.MonthlyPayment.String()),
		)
	}

	if plan.InstallmentCount != order.Installments || !plan.MonthlyPayment.Equal(order.QuotedPayment) {
		h.logger.Info("Storefront quote differs from recomputed plan",
			zap.String("jet_id", string(sub.JetID)),
			zap.Int("quoted_installments", order.Installments),
			zap.Int("installments", plan.InstallmentCount),
			zap.String("quoted_payment", order.QuotedPayment.String()),
			zap.String("monthly_payment", plan.MonthlyPayment.String()),
		)
	}

	return plan
}

func (h *SubmissionHandler) reject(c *gin.Context, err error) {
	var trustErr *admission.TrustError
	var validationErr *admission.ValidationError

	switch {
	case errors.As(err, &trustErr):
		if trustErr.Status == http.StatusTooManyRequests {
			c.Header("Retry-After", strconv.Itoa(int(trustErr.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"ok":     false,
				"error":  "Too many requests",
				"reason": trustErr.Reason,
			})
			return
		}

		c.Header("X-Jet-403-Reason", trustErr.Reason)
		c.JSON(trustErr.Status, gin.H{
			"ok":     false,
			"error":  "Forbidden",
			"reason": trustErr.Reason,
		})

	case errors.As(err, &validationErr):
		if len(validationErr.Missing) > 0 {
			resp := gin.H{
				"ok":      false,
				"error":   "Missing required fields",
				"missing": validationErr.Missing,
			}
			if len(validationErr.Invalid) > 0 {
				resp["invalid"] = validationErr.Invalid
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":      false,
			"error":   "Invalid fields",
			"invalid": validationErr.Invalid,
		})

	default:
		h.logger.Error("Admission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "Internal Server Error",
		})
	}
}

// Answers every other method on the submission routes
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"ok":    false,
		"error": "Method not allowed",
	})
}
