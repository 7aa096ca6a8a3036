package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yicheng0/tryveo4/internal/pkg/session"
	"github.com/yicheng0/tryveo4/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a request-scoped user
// context so controllers never touch the session store directly.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		setAnonymous(c)
		return c.Next()
	}

	userID := sess.Get(usercontext.KeyUserID)
	uid, ok := userID.(uint)
	if !ok || uid == 0 {
		setAnonymous(c)
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	usercontext.Set(c, usercontext.UserContext{
		UserID:     uid,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})

	return c.Next()
}

func setAnonymous(c *fiber.Ctx) {
	usercontext.Set(c, usercontext.UserContext{IsLoggedIn: false, IsAdmin: false})
}
