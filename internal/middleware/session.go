package middleware

import (
	"net/http"
	"strconv"
	"time"

	"voucher_seckill/internal/model"
	rediskey "voucher_seckill/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// contextUserKey 登录用户在 gin context 中的存放键。
const contextUserKey = "login_user"

// Session 登录态校验 + 滑动续期中间件。
// 登录服务（外部协作方）把用户摘要写进 login:token:{token} hash，
// 这里只负责读取、续期，并把用户放进请求上下文。
func Session(rdb *rd.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "未登录"})
			return
		}

		key := rediskey.LoginTokenKey(token)
		fields, err := rdb.HGetAll(c.Request.Context(), key).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if len(fields) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "登录已过期"})
			return
		}

		userID, err := strconv.ParseInt(fields["id"], 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "登录态损坏"})
			return
		}

		// 活跃用户滑动续期，和登录服务约定同一个 TTL。
		if err := rdb.Expire(c.Request.Context(), key, ttl).Err(); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		c.Set(contextUserKey, model.UserToken{
			ID:       userID,
			NickName: fields["nick_name"],
			Icon:     fields["icon"],
		})
		c.Next()
	}
}

// CurrentUser 取出 Session 中间件放入的登录用户。
func CurrentUser(c *gin.Context) (model.UserToken, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return model.UserToken{}, false
	}
	u, ok := v.(model.UserToken)
	return u, ok
}
