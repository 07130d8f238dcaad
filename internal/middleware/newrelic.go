package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const orderIDKey = "checkout.orderId"

// SetOrderID records the order a request is about so OrderAttributes can report it.
func SetOrderID(c *gin.Context, orderID string) {
	if orderID != "" {
		c.Set(orderIDKey, orderID)
	}
}

// OrderAttributes propagates the nrgin transaction into the request context
// and tags it with the order id once the handler has run.
// Must be registered after nrgin.Middleware.
func OrderAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		// Outbound gateway calls and Redis commands read the transaction from the request context.
		c.Request = newrelic.RequestWithTransactionContext(c.Request, txn)

		c.Next()

		if orderID := c.GetString(orderIDKey); orderID != "" {
			txn.AddAttribute("orderId", orderID)
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
