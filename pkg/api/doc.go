/*
Package api implements the pantry HTTP API.

Routes (all below /api):

	POST   /user/create/                         register an account
	POST   /user/token/, /user/login/            exchange credentials for a token
	POST   /user/logout/                         delete the caller's token
	GET    /user/me/                             the caller's profile
	PUT    /user/me/, PATCH /user/me/            update the profile
	GET    /recipe/tags/, /recipe/ingredients/   list (?assigned_only=1)
	POST   /recipe/tags/, /recipe/ingredients/   create
	GET    /recipe/recipes/                      list (?tags=1,2&ingredients=3)
	POST   /recipe/recipes/                      create
	GET    /recipe/recipes/{id}/                 detail with nested tags and ingredients
	PUT    /recipe/recipes/{id}/, PATCH          update
	DELETE /recipe/recipes/{id}/                 delete
	POST   /recipe/recipes/{id}/upload-image/    multipart upload, field "image"

Requests authenticate with "Authorization: Token <key>" or with the auth
cookie set at login. Cookie-authenticated writes must echo the CSRF cookie in
the X-CSRFToken header. Every object is scoped to its owner: other users'
recipes answer 404.

Usage:

	srv := api.NewServer(api.Config{Auth: auth.DefaultConfig()}, api.Dependencies{
		Users:       store,
		Tokens:      sqlstore.NewCachedTokenStore(store, 10000, time.Minute, redisClient),
		Tags:        store.Tags(),
		Ingredients: store.Ingredients(),
		Recipes:     store.Recipes(),
		Images:      images,
		Hasher:      auth.NewBcryptHasher(12),
		Logger:      logger,
		Metrics:     metrics,
	})
	http.ListenAndServe(":8000", srv)
*/
package api
