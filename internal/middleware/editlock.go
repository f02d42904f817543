package middleware

import (
	"github.com/districtr/districtr-v2-sub000/internal/lock"

	"github.com/gin-gonic/gin"
)

// RequireEditable gates mutating document routes behind the advisory
// edit lock: a request carrying X-User-ID passes when that user holds
// the lock or no lock exists. This only reports conflicts; the write
// paths stay last-write-wins per the lock's advisory contract.
func RequireEditable(lockService lock.Service) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		docID := ctx.Param("id")
		userID := ctx.GetHeader("X-User-ID")

		if err := lockService.CheckWritable(ctx.Request.Context(), docID, userID); err != nil {
			ctx.Error(err)
			ctx.Abort()
			return
		}

		ctx.Set("user_id", userID)
		ctx.Next()
	}
}
