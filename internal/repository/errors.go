package repository

import "errors"

var (
	// ErrEscrowNotFound возвращается, когда escrow транзакция не найдена.
	ErrEscrowNotFound = errors.New("escrow transaction not found")

	// ErrVersionConflict возвращается, когда запись была изменена другим
	// вызовом между чтением и сохранением. Вызывающая сторона обязана
	// перечитать транзакцию и заново проверить предусловие.
	ErrVersionConflict = errors.New("escrow transaction version conflict")

	// ErrNotificationNotFound возвращается, когда уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
)
