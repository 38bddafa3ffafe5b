// Package collection defines recipes and profiles and loads them from a
// YAML collection file.
//
// A collection file looks like:
//
//	profiles:
//	  local:
//	    default: true
//	    data:
//	      host: http://localhost:3000
//	recipes:
//	  get_user:
//	    method: GET
//	    url: "{{host}}/users/{{id}}"
//	    query:
//	      mode: "{{mode}}"
//	    headers:
//	      Accept: application/json
//	    authentication:
//	      type: bearer
//	      token: "{{$API_TOKEN}}"
//
// Map order in the file is preserved for profiles, recipes, query parameters,
// headers and form fields, and Marshal writes them back in the same order.
package collection
