package api

import (
	"context"

	"github.com/fulldump/box"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fulldump/docstore/api/apicollectionv1"
	"github.com/fulldump/docstore/service"
)

func Build(s service.Servicer, version string) *box.B {

	b := box.NewBox()
	b.WithInterceptors(
		injectServicer(s),
	)

	v1 := b.Resource("/v1")

	v1.Resource("/login").
		WithActions(
			box.Post(login).WithName("login"),
		)

	v1.Resource("/users").
		WithInterceptors(Authenticate).
		WithActions(
			box.Post(registerUser).WithName("registerUser"),
		)

	v1.Resource("/databases").
		WithInterceptors(Authenticate).
		WithActions(
			box.Get(listDatabases).WithName("listDatabases"),
		)

	apicollectionv1.BuildV1Collection(v1)

	b.Resource("/metrics").
		WithActions(
			box.Get(promhttp.Handler().ServeHTTP).WithName("metrics"),
		)

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}).WithName("release"))

	return b
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(apicollectionv1.SetServicer(ctx, s))
		}
	}
}
