package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/skinsch/dbproxy/internal/x/xtesting"
	"pgregory.net/rapid"
)

// RunTests runs tests that confirm a [Store] implementation behaves
// correctly.
func RunTests(
	t *testing.T,
	newStore func(t *testing.T) Store,
) {
	setup := func(t *testing.T) Table {
		schema := xtesting.SequentialName("schema")
		name := xtesting.SequentialName("table")

		tbl, err := newStore(t).Open(t.Context(), schema, name)
		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(func() {
			if err := tbl.Close(); err != nil {
				t.Error(err)
			}
		})

		if tbl.Schema() != schema {
			t.Fatalf("unexpected schema: got %q, want %q", tbl.Schema(), schema)
		}

		if tbl.Name() != name {
			t.Fatalf("unexpected table name: got %q, want %q", tbl.Name(), name)
		}

		return tbl
	}

	t.Run("Store", func(t *testing.T) {
		t.Parallel()

		t.Run("Open", func(t *testing.T) {
			t.Parallel()

			t.Run("allows tables to be opened multiple times", func(t *testing.T) {
				t.Parallel()

				s := newStore(t)

				t1, err := s.Open(t.Context(), "<schema>", "<table>")
				if err != nil {
					t.Fatal(err)
				}
				defer t1.Close()

				t2, err := s.Open(t.Context(), "<schema>", "<table>")
				if err != nil {
					t.Fatal(err)
				}
				defer t2.Close()

				expect := []byte("<value>")
				if err := t1.Set(t.Context(), []byte("<key>"), expect); err != nil {
					t.Fatal(err)
				}

				actual, ok, err := t2.Get(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected key to be present")
				}

				if !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})

			t.Run("isolates tables within a schema", func(t *testing.T) {
				t.Parallel()

				s := newStore(t)
				schema := xtesting.SequentialName("schema")

				t1, err := s.Open(t.Context(), schema, "<table-1>")
				if err != nil {
					t.Fatal(err)
				}
				defer t1.Close()

				t2, err := s.Open(t.Context(), schema, "<table-2>")
				if err != nil {
					t.Fatal(err)
				}
				defer t2.Close()

				if err := t1.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				ok, err := t2.Has(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected key to be absent from the other table")
				}
			})

			t.Run("isolates schemas", func(t *testing.T) {
				t.Parallel()

				s := newStore(t)

				t1, err := s.Open(t.Context(), xtesting.SequentialName("schema"), "<table>")
				if err != nil {
					t.Fatal(err)
				}
				defer t1.Close()

				t2, err := s.Open(t.Context(), xtesting.SequentialName("schema"), "<table>")
				if err != nil {
					t.Fatal(err)
				}
				defer t2.Close()

				if err := t1.Set(t.Context(), []byte("<key>"), []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				ok, err := t2.Has(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected key to be absent from the other schema")
				}
			})
		})
	})

	t.Run("Table", func(t *testing.T) {
		t.Parallel()

		t.Run("Get", func(t *testing.T) {
			t.Parallel()

			t.Run("it reports absence if the key doesn't exist", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				_, ok, err := tbl.Get(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected ok to be false")
				}
			})

			t.Run("it reports absence if the key has been deleted", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				if _, err := tbl.Delete(t.Context(), k); err != nil {
					t.Fatal(err)
				}

				_, ok, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected ok to be false")
				}
			})

			t.Run("it returns the value if the key exists", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				for i := 0; i < 5; i++ {
					k := []byte(fmt.Sprintf("<key-%d>", i))
					v := []byte(fmt.Sprintf("<value-%d>", i))

					if err := tbl.Set(t.Context(), k, v); err != nil {
						t.Fatal(err)
					}
				}

				for i := 0; i < 5; i++ {
					k := []byte(fmt.Sprintf("<key-%d>", i))
					expect := []byte(fmt.Sprintf("<value-%d>", i))

					actual, ok, err := tbl.Get(t.Context(), k)
					if err != nil {
						t.Fatal(err)
					}
					if !ok {
						t.Fatalf("expected key %q to be present", string(k))
					}

					if !bytes.Equal(expect, actual) {
						t.Fatalf(
							"unexpected value, want %q, got %q",
							string(expect),
							string(actual),
						)
					}
				}
			})

			t.Run("it reports presence of an empty value", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				if err := tbl.Set(t.Context(), k, nil); err != nil {
					t.Fatal(err)
				}

				v, ok, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected key to be present")
				}
				if len(v) != 0 {
					t.Fatalf("expected an empty value, got %q", string(v))
				}
			})

			t.Run("it does not return its internal byte slice", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				v, _, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}

				v[0] = 'X'

				actual, _, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}

				if expect := []byte("<value>"); !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})
		})

		t.Run("Set", func(t *testing.T) {
			t.Parallel()

			t.Run("it replaces an existing value", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				expect := []byte("<updated>")
				if err := tbl.Set(t.Context(), k, expect); err != nil {
					t.Fatal(err)
				}

				actual, _, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}

				n, err := tbl.Len(t.Context())
				if err != nil {
					t.Fatal(err)
				}
				if n != 1 {
					t.Fatalf("unexpected length: got %d, want 1", n)
				}
			})

			t.Run("it does not keep a reference to the key or value slices", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")
				v := []byte("<value>")

				if err := tbl.Set(t.Context(), k, v); err != nil {
					t.Fatal(err)
				}

				k[0] = 'X'
				v[0] = 'Y'

				ok, err := tbl.Has(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatalf("unexpected key: %q", string(k))
				}

				actual, _, err := tbl.Get(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}

				if expect := []byte("<value>"); !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})
		})

		t.Run("Has", func(t *testing.T) {
			t.Parallel()

			t.Run("it reports presence of a key", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				ok, err := tbl.Has(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected ok to be false")
				}

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				ok, err = tbl.Has(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected ok to be true")
				}
			})
		})

		t.Run("Delete", func(t *testing.T) {
			t.Parallel()

			t.Run("it reports whether the key was present", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				ok, err := tbl.Delete(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected ok to be false")
				}

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				ok, err = tbl.Delete(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("expected ok to be true")
				}

				ok, err = tbl.Has(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("expected key to be absent after delete")
				}
			})
		})

		t.Run("Len", func(t *testing.T) {
			t.Parallel()

			t.Run("it counts the key/value pairs", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				for n := 0; n < 5; n++ {
					count, err := tbl.Len(t.Context())
					if err != nil {
						t.Fatal(err)
					}
					if count != n {
						t.Fatalf("unexpected length: got %d, want %d", count, n)
					}

					k := []byte(fmt.Sprintf("<key-%d>", n))
					if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
						t.Fatal(err)
					}
				}
			})
		})

		t.Run("Range", func(t *testing.T) {
			t.Parallel()

			t.Run("calls the function for each key in the table", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				expect := map[string]string{}

				for n := 0; n < 100; n++ {
					k := fmt.Sprintf("<key-%d>", n)
					v := fmt.Sprintf("<value-%d>", n)
					if err := tbl.Set(t.Context(), []byte(k), []byte(v)); err != nil {
						t.Fatal(err)
					}

					expect[k] = v
				}

				actual := map[string]string{}

				if err := tbl.Range(
					t.Context(),
					func(_ context.Context, k, v []byte) (bool, error) {
						actual[string(k)] = string(v)
						return true, nil
					},
				); err != nil {
					t.Fatal(err)
				}

				if diff := cmp.Diff(expect, actual); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("it stops iterating if the function returns false", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				for n := 0; n < 2; n++ {
					k := fmt.Sprintf("<key-%d>", n)
					if err := tbl.Set(t.Context(), []byte(k), []byte("<value>")); err != nil {
						t.Fatal(err)
					}
				}

				called := false
				if err := tbl.Range(
					t.Context(),
					func(_ context.Context, _, _ []byte) (bool, error) {
						if called {
							return false, errors.New("unexpected call")
						}

						called = true
						return false, nil
					},
				); err != nil {
					t.Fatal(err)
				}
			})

			t.Run("it allows mutation of the table during iteration", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				k := []byte("<key>")

				if err := tbl.Set(t.Context(), k, []byte("<value>")); err != nil {
					t.Fatal(err)
				}

				expect := []byte("<updated>")

				if err := tbl.Range(
					t.Context(),
					func(ctx context.Context, k, _ []byte) (bool, error) {
						if err := tbl.Set(ctx, k, expect); err != nil {
							t.Fatal(err)
						}
						return false, nil
					},
				); err != nil {
					t.Fatal(err)
				}

				actual, _, err := tbl.Get(t.Context(), k)
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})

			t.Run("it does not invoke the function with its internal byte slices", func(t *testing.T) {
				t.Parallel()

				tbl := setup(t)

				if err := tbl.Set(
					t.Context(),
					[]byte("<key>"),
					[]byte("<value>"),
				); err != nil {
					t.Fatal(err)
				}

				if err := tbl.Range(
					t.Context(),
					func(_ context.Context, k, v []byte) (bool, error) {
						k[0] = 'X'
						v[0] = 'Y'

						return true, nil
					},
				); err != nil {
					t.Fatal(err)
				}

				ok, err := tbl.Has(t.Context(), []byte("Xkey>"))
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Fatal("range mutated the stored key")
				}

				actual, _, err := tbl.Get(t.Context(), []byte("<key>"))
				if err != nil {
					t.Fatal(err)
				}

				if expect := []byte("<value>"); !bytes.Equal(expect, actual) {
					t.Fatalf(
						"unexpected value, want %q, got %q",
						string(expect),
						string(actual),
					)
				}
			})
		})
	})

	t.Run("property-based", func(t *testing.T) {
		t.Parallel()

		s := newStore(t)

		rapid.Check(t, func(t *rapid.T) {
			tbl, err := s.Open(
				t.Context(),
				xtesting.SequentialName("schema"),
				xtesting.SequentialName("table"),
			)
			if err != nil {
				t.Fatal(err)
			}
			defer tbl.Close()

			nonEmptyValue := rapid.StringN(1, -1, -1)

			pairs := map[string][]byte{}
			var keys [][]byte

			t.Repeat(
				map[string]func(*rapid.T){
					"Get": func(t *rapid.T) {
						key := []byte(nonEmptyValue.Draw(t, "key"))

						value, ok, err := tbl.Get(t.Context(), key)
						if err != nil {
							t.Fatal(err)
						}

						expect, present := pairs[string(key)]
						if ok != present {
							t.Fatalf(
								"unexpected presence for key %q: got %t, want %t",
								string(key),
								ok,
								present,
							)
						}

						if !bytes.Equal(expect, value) {
							t.Fatalf(
								"unexpected value for key %q: got %q, want %q",
								string(key),
								string(value),
								string(expect),
							)
						}
					},
					"Has": func(t *rapid.T) {
						key := []byte(nonEmptyValue.Draw(t, "key"))

						ok, err := tbl.Has(t.Context(), key)
						if err != nil {
							t.Fatal(err)
						}

						_, expect := pairs[string(key)]
						if ok != expect {
							t.Fatalf(
								"unexpected has for key %q: got %t, want %t",
								string(key),
								ok,
								expect,
							)
						}
					},
					"Set": func(t *rapid.T) {
						key := []byte(nonEmptyValue.Draw(t, "key"))
						value := []byte(nonEmptyValue.Draw(t, "value"))

						if err := tbl.Set(t.Context(), key, value); err != nil {
							t.Fatal(err)
						}

						n := len(pairs)
						pairs[string(key)] = value
						if len(pairs) > n {
							keys = append(keys, key)
						}
					},
					"Delete": func(t *rapid.T) {
						if len(pairs) == 0 {
							t.Skip("skip: table is empty")
						}

						key := rapid.SampledFrom(keys).Draw(t, "key")

						ok, err := tbl.Delete(t.Context(), key)
						if err != nil {
							t.Fatal(err)
						}
						if !ok {
							t.Fatalf("expected key %q to be present", string(key))
						}

						delete(pairs, string(key))
						keys = slices.DeleteFunc(
							keys,
							func(k []byte) bool {
								return bytes.Equal(k, key)
							},
						)
					},
					"Len": func(t *rapid.T) {
						n, err := tbl.Len(t.Context())
						if err != nil {
							t.Fatal(err)
						}

						if n != len(pairs) {
							t.Fatalf("unexpected length: got %d, want %d", n, len(pairs))
						}
					},
					"Range": func(t *rapid.T) {
						seen := map[string]struct{}{}

						if err := tbl.Range(
							t.Context(),
							func(_ context.Context, k, v []byte) (bool, error) {
								if _, ok := seen[string(k)]; ok {
									t.Fatalf(
										"key seen twice while ranging over pairs: %q",
										string(k),
									)
								}
								seen[string(k)] = struct{}{}

								expect, ok := pairs[string(k)]
								if !ok {
									t.Fatalf("unexpected key while ranging over pairs: %q", string(k))
								}

								if !bytes.Equal(expect, v) {
									t.Fatalf(
										"unexpected value for key %q: got %q, want %q",
										string(k),
										string(v),
										string(expect),
									)
								}

								return true, nil
							},
						); err != nil {
							t.Fatal(err)
						}

						for key := range pairs {
							if _, ok := seen[key]; !ok {
								t.Fatalf("key not seen while ranging over pairs: %q", key)
							}
						}
					},
				},
			)
		})
	})
}
