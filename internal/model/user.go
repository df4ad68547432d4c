// Package model はドメインモデルを定義する。
package model

import "time"

// User はディレクトリに登録されたユーザーを表す。
// IDはIdPが払い出したUIDと同一で、IdP側のレコードとは別に保持する。
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity はローカルIdPが管理する認証主体を表す。
// Firebase利用時はIdP側に保持されるため、このレコードは作成されない。
type Identity struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash string
	// TokensValidAfter より前に発行されたセッショントークンは失効扱いとなる。
	TokensValidAfter time.Time
	CreatedAt        time.Time
}
