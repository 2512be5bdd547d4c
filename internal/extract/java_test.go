package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nishanttri/code-graph/internal/graph"
)

const javaController = `package com.example.api;

import java.util.List;
import static java.util.Collections.emptyList;
import com.example.service.*;

@RestController
@RequestMapping("/api")
public class UserController {

    @Autowired
    private UserService userService;

    @Value("${app.page-size}")
    private int pageSize;

    public UserController(UserRepository repository) {
        this.repository = repository;
    }

    @GetMapping("/users")
    public List<User> list() {
        return userService.findAll();
    }

    @RequestMapping(value = "/users/{id}", method = RequestMethod.DELETE)
    public void remove(long id) {
        userService.delete(id);
        log(id);
    }
}
`

func TestJavaSpringController(t *testing.T) {
	r, err := ExtractJava("src/main/java/com/example/api/UserController.java", []byte(javaController))
	require.NoError(t, err)

	pkg := findNode(r, graph.NodeModule, "com.example.api")
	require.NotNil(t, pkg)

	imp := findNode(r, graph.NodeImport, "java.util.List")
	require.NotNil(t, imp)
	require.Equal(t, false, imp.Metadata["isStatic"])

	staticImp := findNode(r, graph.NodeImport, "java.util.Collections.emptyList")
	require.NotNil(t, staticImp)
	require.Equal(t, true, staticImp.Metadata["isStatic"])

	wildcard := findNode(r, graph.NodeImport, "com.example.service")
	require.NotNil(t, wildcard)
	require.Equal(t, true, wildcard.Metadata["isWildcard"])

	ctrl := findNode(r, graph.NodeController, "UserController")
	require.NotNil(t, ctrl)
	require.Equal(t, "/api", ctrl.Metadata["requestMapping"])
}

func TestJavaEndpoint(t *testing.T) {
	r, err := ExtractJava("UserController.java", []byte(javaController))
	require.NoError(t, err)

	list := findNode(r, graph.NodeEndpoint, "UserController.list")
	require.NotNil(t, list)
	require.Equal(t, "GET", list.Metadata["httpMethod"])
	require.Equal(t, "/users", list.Metadata["path"])
	require.Equal(t, "/api/users", list.Metadata["fullPath"])

	remove := findNode(r, graph.NodeEndpoint, "UserController.remove")
	require.NotNil(t, remove)
	require.Equal(t, "DELETE", remove.Metadata["httpMethod"])
	require.Equal(t, "/users/{id}", remove.Metadata["path"])
	require.Equal(t, "/api/users/{id}", remove.Metadata["fullPath"])
}

func TestJavaFieldInjection(t *testing.T) {
	r, err := ExtractJava("UserController.java", []byte(javaController))
	require.NoError(t, err)

	field := findNode(r, graph.NodeVariable, "UserController.userService")
	require.NotNil(t, field)
	require.Equal(t, "UserService", field.Metadata["type"])
	require.NotNil(t, findEdge(r, graph.EdgeAutowires, field.ID, "ref:class:UserService"))

	// @Value field records the property but does not autowire.
	pageSize := findNode(r, graph.NodeVariable, "UserController.pageSize")
	require.NotNil(t, pageSize)
	require.Equal(t, "${app.page-size}", pageSize.Metadata["valueProperty"])
	require.Nil(t, findEdge(r, graph.EdgeAutowires, pageSize.ID, "ref:class:int"))
}

func TestJavaConstructorInjection(t *testing.T) {
	r, err := ExtractJava("UserController.java", []byte(javaController))
	require.NoError(t, err)

	ctor := findNode(r, graph.NodeMethod, "UserController.<init>")
	require.NotNil(t, ctor)
	require.Equal(t, true, ctor.Metadata["isConstructor"])
	require.NotNil(t, findEdge(r, graph.EdgeInjects, ctor.ID, "ref:class:UserRepository"))
}

func TestJavaCallCollection(t *testing.T) {
	r, err := ExtractJava("UserController.java", []byte(javaController))
	require.NoError(t, err)

	remove := findNode(r, graph.NodeEndpoint, "UserController.remove")
	require.NotNil(t, remove)
	require.NotNil(t, findEdge(r, graph.EdgeCalls, remove.ID, "ref:method:userService.delete"))
	require.NotNil(t, findEdge(r, graph.EdgeCalls, remove.ID, "ref:method:log"))

	list := findNode(r, graph.NodeEndpoint, "UserController.list")
	require.NotNil(t, list)
	require.NotNil(t, findEdge(r, graph.EdgeCalls, list.ID, "ref:method:userService.findAll"))
}

func TestJavaStereotypesAndHeritage(t *testing.T) {
	src := `package com.example;

@Service
public class OrderService extends BaseService implements Auditable, Closeable {
}
`
	r, err := ExtractJava("OrderService.java", []byte(src))
	require.NoError(t, err)

	svc := findNode(r, graph.NodeService, "OrderService")
	require.NotNil(t, svc)
	require.NotNil(t, findEdge(r, graph.EdgeExtends, svc.ID, "ref:class:BaseService"))
	require.NotNil(t, findEdge(r, graph.EdgeImplements, svc.ID, "ref:interface:Auditable"))
	require.NotNil(t, findEdge(r, graph.EdgeImplements, svc.ID, "ref:interface:Closeable"))
}

func TestJavaInterface(t *testing.T) {
	src := `package com.example;

public interface Repo extends CrudRepository<User, Long> {
    User findByName(String name);
}
`
	r, err := ExtractJava("Repo.java", []byte(src))
	require.NoError(t, err)

	iface := findNode(r, graph.NodeInterface, "Repo")
	require.NotNil(t, iface)
	require.NotNil(t, findEdge(r, graph.EdgeExtends, iface.ID, "ref:interface:CrudRepository"))
	require.NotNil(t, findNode(r, graph.NodeMethod, "Repo.findByName"))
}

func TestJoinRequestPath(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"/api", "/users", "/api/users"},
		{"/api/", "/users", "/api/users"},
		{"/api", "users", "/api/users"},
		{"", "/users", "/users"},
		{"/api", "", "/api"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, joinRequestPath(c.base, c.path), "base=%q path=%q", c.base, c.path)
	}
}
