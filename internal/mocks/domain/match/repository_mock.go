// Code generated by mockery v2.53.5. DO NOT EDIT.

package matchmock

import (
	context "context"

	match "github.com/riskibarqy/fantasy-contest/internal/domain/match"
	mock "github.com/stretchr/testify/mock"
)

// Repository is an autogenerated mock type for the Repository type
type Repository struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, matchID
func (_m *Repository) Get(ctx context.Context, matchID string) (match.Match, bool, error) {
	ret := _m.Called(ctx, matchID)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 match.Match
	var r1 bool
	var r2 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (match.Match, bool, error)); ok {
		return rf(ctx, matchID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) match.Match); ok {
		r0 = rf(ctx, matchID)
	} else {
		r0 = ret.Get(0).(match.Match)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) bool); ok {
		r1 = rf(ctx, matchID)
	} else {
		r1 = ret.Get(1).(bool)
	}

	if rf, ok := ret.Get(2).(func(context.Context, string) error); ok {
		r2 = rf(ctx, matchID)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// List provides a mock function with given fields: ctx
func (_m *Repository) List(ctx context.Context) ([]match.Match, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for List")
	}

	var r0 []match.Match
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]match.Match, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []match.Match); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]match.Match)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListUpcoming provides a mock function with given fields: ctx, limit
func (_m *Repository) ListUpcoming(ctx context.Context, limit int) ([]match.Match, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListUpcoming")
	}

	var r0 []match.Match
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]match.Match, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []match.Match); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]match.Match)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Upsert provides a mock function with given fields: ctx, m
func (_m *Repository) Upsert(ctx context.Context, m match.Match) error {
	ret := _m.Called(ctx, m)

	if len(ret) == 0 {
		panic("no return value specified for Upsert")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, match.Match) error); ok {
		r0 = rf(ctx, m)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewRepository creates a new instance of Repository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *Repository {
	mock := &Repository{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
