package model

// UserToken 登录态在 Redis hash 中的用户摘要，
// 由外部登录服务写入 login:token:{token}，本服务只读并续期。
type UserToken struct {
	ID       int64  `json:"id"`
	NickName string `json:"nick_name"`
	Icon     string `json:"icon"`
}
