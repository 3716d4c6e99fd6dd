package domain

import "errors"

var (
	// ErrStorage — не удалось записать или прочитать данные из БД.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — пользователь не владеет объектом.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated — личность не установлена или токен недействителен.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidInput — запрос не прошёл валидацию.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyLiked — повторный лайк того же поста.
	ErrAlreadyLiked = errors.New("post already liked")
	// ErrNotLiked — попытка снять несуществующий лайк.
	ErrNotLiked = errors.New("post is not liked")
	// ErrUserExists — имя пользователя или email уже заняты.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials — неверная пара логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCacheMiss — ключа нет в кэше.
	ErrCacheMiss = errors.New("cache miss")
)
