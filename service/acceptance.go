package service

import (
	"encoding/base64"
	"net/http"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]interface{}

func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// Acceptance runs the HTTP scenarios against a server whose requests are
// built by apiRequest, already authenticated as an admin. Paths are relative
// to /v1.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	const collectionPath = "/databases/shop/collections/products"

	a.Alternative("Insert one", func(a *biff.A) {
		resp := apiRequest("POST", collectionPath+":insertOne").
			WithBodyJson(JSON{
				"_id":   "ignored",
				"name":  "Alpha",
				"price": 10,
			}).Do()
		Save(resp, "Insert one", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		body := resp.BodyJsonMap()
		biff.AssertEqual(body["status"], "ok")
		stored := body["value"].(map[string]interface{})
		id := stored["_id"].(string)
		biff.AssertNotEqual(id, "ignored")
		expected := JSON{"_id": id, "name": "Alpha", "price": 10}
		biff.AssertEqualJson(stored, expected)

		a.Alternative("Find", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":find").
				WithBodyJson(JSON{
					"filter": JSON{"price": JSON{"$gte": 5}},
				}).Do()
			Save(resp, "Find", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"status": "ok",
				"value":  []JSON{expected},
			})
		})

		a.Alternative("Count", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":count").
				WithBodyJson(JSON{"filter": JSON{"name": "Alpha"}}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": 1})
		})

		a.Alternative("Update one", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":updateOne").
				WithBodyJson(JSON{
					"filter": JSON{"name": "Alpha"},
					"update": JSON{"$set": JSON{"price": 12}},
				}).Do()
			Save(resp, "Update one", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"status": "ok",
				"value":  JSON{"matched": 1, "modified": 1, "upserted": false},
			})

			resp = apiRequest("POST", collectionPath+":find").Do()
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"status": "ok",
				"value":  []JSON{{"_id": id, "name": "Alpha", "price": 12}},
			})
		})

		a.Alternative("Update without match", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":updateOne").
				WithBodyJson(JSON{
					"filter": JSON{"name": "Beta"},
					"update": JSON{"$set": JSON{"price": 1}},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"status": "not_found",
				"value":  JSON{"matched": 0, "modified": 0, "upserted": false},
			})
		})

		a.Alternative("Upsert", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":updateOne").
				WithBodyJson(JSON{
					"filter": JSON{"name": "Beta"},
					"update": JSON{"$set": JSON{"price": 1}},
					"upsert": true,
				}).Do()
			Save(resp, "Upsert", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			value := resp.BodyJsonMap()["value"].(map[string]interface{})
			biff.AssertEqual(value["upserted"], true)

			resp = apiRequest("POST", collectionPath+":find").
				WithBodyJson(JSON{"filter": JSON{"name": "Beta"}}).Do()
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"status": "ok",
				"value":  []JSON{{"_id": value["upserted_id"], "name": "Beta", "price": 1}},
			})
		})

		a.Alternative("Delete one", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":deleteOne").
				WithBodyJson(JSON{"filter": JSON{"_id": id}}).Do()
			Save(resp, "Delete one", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": 1})

			resp = apiRequest("POST", collectionPath+":find").Do()
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": []JSON{}})
		})

		a.Alternative("Create index", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":createIndex").
				WithBodyJson(JSON{"field": "name"}).Do()
			Save(resp, "Create index", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			index := JSON{"field": "name", "entries": 1, "stale": false}
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": index})

			a.Alternative("List indexes", func(a *biff.A) {
				resp := apiRequest("POST", collectionPath+":listIndexes").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": []JSON{index}})
			})

			a.Alternative("Find through the index", func(a *biff.A) {
				resp := apiRequest("POST", collectionPath+":find").
					WithBodyJson(JSON{"filter": JSON{"name": "Alpha"}}).Do()

				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": []JSON{expected}})
			})

			a.Alternative("Drop index", func(a *biff.A) {
				resp := apiRequest("POST", collectionPath+":dropIndex").
					WithBodyJson(JSON{"field": "name"}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": true})
			})
		})

		a.Alternative("List databases", func(a *biff.A) {
			resp := apiRequest("GET", "/databases").Do()
			Save(resp, "List databases", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []JSON{
				{"name": "auth", "collections": []string{"users"}},
				{"name": "shop", "collections": []string{"products"}},
			})
		})

		a.Alternative("Read only user", func(a *biff.A) {
			resp := apiRequest("POST", "/users").
				WithBodyJson(JSON{
					"username": "reader",
					"password": "reader-secret",
					"roles": []JSON{
						{"resource": "shop.products", "permissions": []string{"read"}},
					},
				}).Do()
			Save(resp, "Register user", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			biff.AssertEqual(resp.BodyJsonMap()["username"], "reader")

			asReader := func(method, path string) *apitest.Request {
				return apiRequest(method, path).
					WithHeader("Authorization", BasicAuth("reader", "reader-secret"))
			}

			a.Alternative("Can read", func(a *biff.A) {
				resp := asReader("POST", collectionPath+":find").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": []JSON{expected}})
			})

			a.Alternative("Can not write", func(a *biff.A) {
				resp := asReader("POST", collectionPath+":insertOne").
					WithBodyJson(JSON{"name": "Gamma"}).Do()
				Save(resp, "Insert one - denied", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusForbidden)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "denied"})
			})

			a.Alternative("Only sees readable databases", func(a *biff.A) {
				resp := asReader("GET", "/databases").Do()

				biff.AssertEqualJson(resp.BodyJson(), []JSON{
					{"name": "shop", "collections": []string{"products"}},
				})
			})

			a.Alternative("Can not read users", func(a *biff.A) {
				resp := asReader("POST", "/databases/auth/collections/users:find").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusForbidden)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "denied"})
			})

			a.Alternative("Can not register users", func(a *biff.A) {
				resp := asReader("POST", "/users").
					WithBodyJson(JSON{"username": "other", "password": "other"}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusForbidden)
			})

			a.Alternative("Login", func(a *biff.A) {
				resp := apiRequest("POST", "/login").
					WithBodyJson(JSON{"username": "reader", "password": "reader-secret"}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(resp.BodyJsonMap()["username"], "reader")
			})

			a.Alternative("Duplicated user", func(a *biff.A) {
				resp := apiRequest("POST", "/users").
					WithBodyJson(JSON{"username": "reader", "password": "x"}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusConflict)
			})
		})
	})

	a.Alternative("Insert many", func(a *biff.A) {
		resp := apiRequest("POST", collectionPath+":insertMany").
			WithBodyJson([]JSON{
				{"name": "Alpha", "kind": "a"},
				{"name": "Beta", "kind": "b"},
				{"name": "Gamma", "kind": "a"},
			}).Do()
		Save(resp, "Insert many", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqual(len(resp.BodyJsonMap()["value"].([]interface{})), 3)

		a.Alternative("Delete removes every match", func(a *biff.A) {
			resp := apiRequest("POST", collectionPath+":deleteOne").
				WithBodyJson(JSON{"filter": JSON{"kind": "a"}}).Do()
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": 2})

			resp = apiRequest("POST", collectionPath+":count").Do()
			biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "ok", "value": 1})
		})
	})

	a.Alternative("Find on a missing collection", func(a *biff.A) {
		resp := apiRequest("POST", "/databases/shop/collections/ghost:find").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
		biff.AssertEqualJson(resp.BodyJson(), JSON{"status": "not_found", "value": []JSON{}})
	})

	a.Alternative("Malformed body", func(a *biff.A) {
		resp := apiRequest("POST", collectionPath+":insertOne").
			WithBodyString(`{"name": `).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})

	a.Alternative("Unsupported update operator", func(a *biff.A) {
		resp := apiRequest("POST", collectionPath+":updateOne").
			WithBodyJson(JSON{
				"filter": JSON{},
				"update": JSON{"$inc": JSON{"price": 1}},
			}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})

	a.Alternative("Users are not written through collections", func(a *biff.A) {
		resp := apiRequest("POST", "/databases/auth/collections/users:insertOne").
			WithBodyJson(JSON{"username": "evil", "password": "x"}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusForbidden)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"error": JSON{
				"message":     "'auth.users': reserved collection",
				"description": "users are managed through /v1/users",
			},
		})
	})

	a.Alternative("Invalid database name", func(a *biff.A) {
		resp := apiRequest("POST", "/databases/a.b/collections/c:insertOne").
			WithBodyJson(JSON{}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})
}
